package ambient

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// SPI drives a WS2812-class strip with NRZ encoding over a SPI port.
type SPI struct {
	dev  *nrzled.Dev
	port spi.PortCloser
	n    int
}

// OpenSPI initializes the host drivers and opens the named port; "" picks
// the first one available.
func OpenSPI(name string, n int) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	s, err := NewSPI(p, n)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// spiClock is the only port speed nrzled accepts. Each data byte goes out
// as 4 SPI bytes, which yields the strip's 800 kHz NRZ timing.
const spiClock = 2500 * physic.KiloHertz

// NewSPI wraps an open port.
func NewSPI(p spi.PortCloser, n int) (*SPI, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", n)
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: n,
		Channels:  3,
		Freq:      spiClock,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &SPI{dev: dev, port: p, n: n}, nil
}

func (s *SPI) Write(rgb []byte) error {
	if len(rgb) != s.n*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), s.n)
	}
	if _, err := s.dev.Write(rgb); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (s *SPI) Close() error {
	return errors.Join(s.dev.Halt(), s.port.Close())
}

func (s *SPI) String() string { return s.dev.String() }
