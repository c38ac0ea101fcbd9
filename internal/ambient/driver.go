package ambient

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/config"
	diag "github.com/coreman2200/edream/internal/diagnostics"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame. len(rgb) must be 3*N.
	Write(rgb []byte) error
	Close() error
}

// Sim logs a compact summary of each frame instead of driving hardware.
type Sim struct {
	mu    sync.Mutex
	log   zerolog.Logger
	count int
	last  []byte
}

func NewSim(log zerolog.Logger) *Sim {
	return &Sim{log: log.With().Str("driver", "sim").Logger()}
}

func (d *Sim) Write(rgb []byte) error {
	if len(rgb)%3 != 0 {
		return fmt.Errorf("rgb length %d is not a multiple of 3", len(rgb))
	}
	d.mu.Lock()
	d.count++
	d.last = append(d.last[:0], rgb...)
	n := d.count
	d.mu.Unlock()

	if e := d.log.Trace(); e.Enabled() && len(rgb) > 0 {
		var r, g, b int
		for i := 0; i < len(rgb); i += 3 {
			r += int(rgb[i])
			g += int(rgb[i+1])
			b += int(rgb[i+2])
		}
		px := len(rgb) / 3
		e.Int("frame", n).
			Ints("avg", []int{r / px, g / px, b / px}).
			Ints("first", []int{int(rgb[0]), int(rgb[1]), int(rgb[2])}).
			Msg("ambient frame")
	}
	return nil
}

// Last returns a copy of the most recent frame.
func (d *Sim) Last() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.last...)
}

func (d *Sim) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *Sim) Close() error { return nil }

// Open returns the sink named by cfg.Driver, or nil when ambient output is
// off. An SPI port that cannot be opened falls back to the simulator.
func Open(cfg config.Ambient, log zerolog.Logger, sink diag.Sink) (Driver, error) {
	log = log.With().Str("component", "ambient").Logger()
	n := PerimeterOf(cfg.LEDs).Count()
	switch strings.ToLower(cfg.Driver) {
	case "", "off":
		return nil, nil
	case "sim":
		return NewSim(log), nil
	case "spi":
		d, err := OpenSPI(cfg.Port, n)
		if err == nil {
			log.Info().Str("dev", d.String()).Int("leds", n).Msg("ambient strip on SPI")
			return d, nil
		}
		log.Warn().Err(err).Msg("no SPI port; falling back to sim driver")
		if sink != nil {
			sink(diag.Diagnostic{
				Severity:       diag.Warn,
				Code:           diag.AmbientFallback,
				Summary:        "Ambient strip not found",
				Detail:         err.Error(),
				LikelyCauses:   []string{"SPI disabled in the boot config", "Wrong ambient.port"},
				SuggestedFixes: []string{"Enable SPI (dtparam=spi=on)", "Set ambient.driver to sim"},
				Evidence:       map[string]any{"port": cfg.Port, "leds": n},
			})
		}
		return NewSim(log), nil
	default:
		return nil, fmt.Errorf("unknown ambient driver %q", cfg.Driver)
	}
}
