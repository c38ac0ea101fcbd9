package ambient

import (
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/render"
)

// Output turns composited frames into strip writes. While a test pattern
// runs it takes precedence over the frame.
type Output struct {
	Perimeter Perimeter

	mu         sync.Mutex
	drv        Driver
	sampler    *Sampler
	limiter    Limiter
	brightness float32
	runner     *Runner
	buf        []render.Color
	rgb        []byte

	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewOutput(cfg config.Ambient, drv Driver, m *metrics.Metrics, log zerolog.Logger) *Output {
	p := PerimeterOf(cfg.LEDs)
	return &Output{
		Perimeter:  p,
		drv:        drv,
		sampler:    NewSampler(p, 0.35),
		limiter:    LimiterOf(cfg.WhiteCap, cfg.BudgetMA),
		brightness: float32(cfg.Brightness),
		buf:        make([]render.Color, p.Count()),
		rgb:        make([]byte, p.Count()*3),
		metrics:    m,
		log:        log.With().Str("component", "ambient").Logger(),
	}
}

// RunPattern starts a wiring test pattern.
func (o *Output) RunPattern(kind Kind) error {
	r, err := NewRunner(kind)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.runner = r
	o.mu.Unlock()
	o.log.Info().Str("pattern", string(kind)).Msg("ambient test started")
	return nil
}

// Testing reports whether a test pattern is still running.
func (o *Output) Testing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runner != nil
}

// Update writes one strip frame sampled from img, or the next pattern frame.
func (o *Output) Update(img image.Image) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drv == nil || o.Perimeter.Count() == 0 {
		return nil
	}

	if o.runner != nil {
		if o.runner.Step(o.Perimeter, o.rgb) {
			for i := range o.buf {
				o.buf[i] = render.Color{
					R: float32(o.rgb[i*3]) / 255,
					G: float32(o.rgb[i*3+1]) / 255,
					B: float32(o.rgb[i*3+2]) / 255,
				}
			}
		} else {
			o.log.Info().Str("pattern", string(o.runner.Kind())).Msg("ambient test complete")
			o.runner = nil
			o.sampler.Reset()
		}
	}
	if o.runner == nil {
		copy(o.buf, o.sampler.Sample(img))
		for i := range o.buf {
			o.buf[i] = o.buf[i].Scale(o.brightness)
		}
	}

	o.limiter.Apply(o.buf)
	for i, c := range o.buf {
		o.rgb[i*3+0] = toByte(c.R)
		o.rgb[i*3+1] = toByte(c.G)
		o.rgb[i*3+2] = toByte(c.B)
	}
	err := o.drv.Write(o.rgb)
	o.metrics.RecordAmbientWrite(err)
	if err != nil {
		o.log.Debug().Err(err).Msg("ambient write failed")
	}
	return err
}

// Close blanks and releases the driver.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drv == nil {
		return nil
	}
	err := o.drv.Close()
	o.drv = nil
	return err
}

func toByte(x float32) byte {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return byte(x*255 + 0.5)
}
