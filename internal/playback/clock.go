package playback

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidFPS = errors.New("playback: decode fps must be > 0")

// Clock is the wall-time source. Tests inject a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads time.Now.
var SystemClock Clock = systemClock{}

// DecoderClock decides when a clip should pull its next decoded frame and
// tracks the fractional position between decode frames.
type DecoderClock struct {
	clock   Clock
	period  float64
	last    time.Time
	acc     float64
	delta   float64
	started bool
}

func NewDecoderClock(c Clock, fps float64) (*DecoderClock, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, ErrInvalidFPS
	}
	if c == nil {
		c = SystemClock
	}
	return &DecoderClock{clock: c, period: 1 / fps}, nil
}

// Reset forgets the timing baseline; the next timed call restarts it.
func (d *DecoderClock) Reset() {
	d.started = false
	d.acc = 0
	d.delta = 0
}

// NeedsNewFrame reports whether a frame boundary has been crossed.
// While the strategy's ring is still filling (framesGrabbed <= startAtFrame)
// it forces a grab without sampling time.
func (d *DecoderClock) NeedsNewFrame(framesGrabbed, startAtFrame int) bool {
	if framesGrabbed <= startAtFrame {
		return true
	}
	now := d.clock.Now()
	if !d.started {
		d.started = true
		d.last = now
		d.acc = 0
		d.delta = 0
		return true
	}
	dt := now.Sub(d.last).Seconds()
	d.last = now
	if dt < 0 {
		dt = 0
	}
	d.acc += dt
	crossed := d.acc >= d.period
	d.acc = math.Mod(d.acc, d.period)
	d.delta = d.acc / d.period
	if d.delta >= 1 {
		d.delta = math.Nextafter(1, 0)
	}
	return crossed
}

// InterframeDelta is the position in [0,1) between the last two decode frames.
func (d *DecoderClock) InterframeDelta() float64 { return d.delta }

func (d *DecoderClock) Started() bool { return d.started }

func (d *DecoderClock) FPS() float64 { return 1 / d.period }
