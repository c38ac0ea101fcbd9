package playback

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/decoder"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/display"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/render"
)

// State is the clip lifecycle.
type State int

const (
	Created State = iota
	Started
	Playing
	FadingOut
	Finished
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Playing:
		return "playing"
	case FadingOut:
		return "fading_out"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Meta describes what a clip plays.
type Meta struct {
	Path     string
	FadeIn   float64 // seconds
	FadeOut  float64 // seconds
	Duration float64 // timeline cap in seconds; 0 plays to the natural end
}

// Options carries a clip's collaborators.
type Options struct {
	Renderer render.Renderer
	Decoder  decoder.Decoder
	// Store supplies display mode and decode fps, and receives the
	// display-mode downgrade when a shader fails. Nil uses the defaults.
	Store *config.Store
	// DecodeFPS overrides Store's decode fps when > 0.
	DecodeFPS float64
	Clock     Clock
	Ease      EaseFunc
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Diagnose  diag.Sink
}

// Stats is a point-in-time view of a clip, safe to take from any goroutine.
type Stats struct {
	ID            string                `json:"id"`
	Path          string                `json:"path"`
	State         string                `json:"state"`
	Mode          string                `json:"mode"`
	Alpha         float64               `json:"alpha"`
	Delta         float64               `json:"interframe_delta"`
	FramesGrabbed int                   `json:"frames_grabbed"`
	Frame         decoder.FrameMetadata `json:"frame"`
	DecodeFPS     float64               `json:"decode_fps"`
}

// Clip plays one video on the master timeline. Update, DrawFrame and the
// other mutators run on the render goroutine; Finished, FrameMetadata and
// Stats may be called from anywhere.
type Clip struct {
	ID   uuid.UUID
	meta Meta

	r        render.Renderer
	dec      decoder.Decoder
	clock    *DecoderClock
	strategy display.Strategy
	ease     EaseFunc
	log      zerolog.Logger
	metrics  *metrics.Metrics
	diagnose diag.Sink

	startTime float64
	endTime   float64

	framesGrabbed int
	full          bool
	fullAt        float64
	frameW        int
	frameH        int
	staging       *image.RGBA

	mu    sync.RWMutex
	frame decoder.FrameMetadata
	alpha float64
	state State
	delta float64

	finished atomic.Bool
	stopOnce sync.Once
	running  bool
	reason   string
}

// NewClip builds a clip that becomes active at startTime on the timeline.
// A display mode whose shader fails to compile falls back to discrete and
// the stored mode is downgraded.
func NewClip(meta Meta, startTime float64, opts Options) (*Clip, error) {
	if opts.Renderer == nil || opts.Decoder == nil {
		return nil, fmt.Errorf("clip %s: renderer and decoder are required", meta.Path)
	}
	cfg := config.Default()
	if opts.Store != nil {
		snap := opts.Store.Snapshot()
		cfg = &snap
	}
	fps := cfg.Decoder.FPS
	if opts.DecodeFPS > 0 {
		fps = opts.DecodeFPS
	}
	clock, err := NewDecoderClock(opts.Clock, fps)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", meta.Path, err)
	}

	c := &Clip{
		ID:        uuid.New(),
		meta:      meta,
		r:         opts.Renderer,
		dec:       opts.Decoder,
		clock:     clock,
		ease:      opts.Ease,
		metrics:   opts.Metrics,
		diagnose:  opts.Diagnose,
		startTime: startTime,
		endTime:   math.Inf(1),
	}
	if meta.Duration > 0 {
		c.endTime = startTime + meta.Duration
	}
	c.log = opts.Logger.With().Str("component", "clip").Str("clip_id", c.ID.String()).Str("path", meta.Path).Logger()

	mode := cfg.Display.Mode
	strategy, err := display.New(mode, opts.Renderer)
	if err != nil {
		c.log.Warn().Err(err).Str("mode", mode.String()).Msg("display strategy unavailable; falling back to discrete")
		c.metrics.RecordFallback(mode.String())
		c.emit(diag.Diagnostic{
			Severity:       diag.Warn,
			Code:           diag.DisplayFallback,
			Summary:        "Frame interpolation disabled",
			Detail:         err.Error(),
			LikelyCauses:   []string{"GPU driver rejected the " + mode.String() + " shader"},
			SuggestedFixes: []string{"Update graphics drivers", "Set display.mode to discrete"},
			Evidence:       map[string]any{"mode": mode.String()},
		})
		if opts.Store != nil && mode != config.ModeDiscrete {
			if serr := opts.Store.SetDisplayMode(config.ModeDiscrete); serr != nil {
				c.log.Warn().Err(serr).Msg("could not persist display mode downgrade")
			}
		}
		strategy, err = display.New(config.ModeDiscrete, opts.Renderer)
		if err != nil {
			return nil, fmt.Errorf("clip %s: discrete fallback: %w", meta.Path, err)
		}
	}
	c.strategy = strategy
	return c, nil
}

func (c *Clip) Meta() Meta { return c.meta }

func (c *Clip) Path() string { return c.meta.Path }

func (c *Clip) StartTime() float64 { return c.startTime }

func (c *Clip) EndTime() float64 { return c.endTime }

func (c *Clip) Strategy() display.Strategy { return c.strategy }

// Finished is safe to call from any goroutine.
func (c *Clip) Finished() bool { return c.finished.Load() }

func (c *Clip) FramesGrabbed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.framesGrabbed
}

// Start resets the clock and begins decoding from seekFrame. A decoder that
// cannot open the source finishes the clip.
func (c *Clip) Start(seekFrame int) error {
	c.clock.Reset()
	if err := c.dec.Start(c.meta.Path, seekFrame); err != nil {
		c.log.Error().Err(err).Int("seek_frame", seekFrame).Msg("decoder failed to open clip")
		c.emit(diag.Diagnostic{
			Severity: diag.Err,
			Code:     diag.DecoderOpen,
			Summary:  "Clip could not be opened",
			Detail:   err.Error(),
			Evidence: map[string]any{"path": c.meta.Path, "clip_id": c.ID.String()},
		})
		c.finish("open_error")
		return err
	}
	c.setState(Started)
	c.running = true
	c.metrics.RecordClipStart()
	c.log.Info().Int("seek_frame", seekFrame).Str("mode", c.strategy.Mode().String()).
		Float64("start", c.startTime).Msg("clip started")
	return nil
}

// Update advances the clip to timeline time t and reports whether it
// should be drawn this tick.
func (c *Clip) Update(t float64) bool {
	if c.finished.Load() {
		return false
	}
	if t > c.endTime {
		c.finish("faded")
		return false
	}
	if t < c.startTime {
		return false
	}

	if c.clock.NeedsNewFrame(c.framesGrabbed, c.strategy.StartAtFrame()) {
		if _, err := c.GrabVideoFrame(); err != nil {
			c.decodeEnded(err)
			return false
		}
	}
	if !c.full && c.framesGrabbed > c.strategy.StartAtFrame() {
		c.full = true
		c.fullAt = t
	}

	secondsIn := 0.0
	if c.full {
		secondsIn = math.Max(0, t-c.fullAt)
	}
	secondsOut := c.secondsOut(t)
	alpha := FadeAlpha(secondsIn, secondsOut, c.meta.FadeIn, c.meta.FadeOut, c.ease)
	if secondsOut <= 0 {
		c.finish("ended")
		return false
	}

	state := Playing
	if secondsOut < c.meta.FadeOut {
		state = FadingOut
	}
	c.mu.Lock()
	c.alpha = alpha
	c.delta = c.clock.InterframeDelta()
	c.state = state
	c.mu.Unlock()
	return true
}

// secondsOut is the time left before the scheduled end or the last decoded
// frame, whichever is sooner.
func (c *Clip) secondsOut(t float64) float64 {
	out := c.endTime - t
	if c.framesGrabbed == 0 {
		return out
	}
	c.mu.RLock()
	f := c.frame
	c.mu.RUnlock()
	if f.MaxFrameIdx > 0 {
		natural := float64(f.MaxFrameIdx-f.FrameIdx) / c.clock.FPS()
		out = math.Min(out, natural)
	}
	return out
}

func (c *Clip) decodeEnded(err error) {
	if errors.Is(err, decoder.ErrEndOfStream) {
		c.log.Debug().Msg("decoder exhausted")
		c.finish("ended")
		return
	}
	c.log.Warn().Err(err).Msg("decode failed; finishing clip")
	c.emit(diag.Diagnostic{
		Severity: diag.Warn,
		Code:     diag.DecoderFailed,
		Summary:  "Clip decode failed",
		Detail:   err.Error(),
		Evidence: map[string]any{"path": c.meta.Path, "clip_id": c.ID.String()},
	})
	c.finish("decode_error")
}

// GrabVideoFrame pops one decoded frame into the display ring. It returns
// (false, nil) when no frame is ready and an error once the decoder is done.
func (c *Clip) GrabVideoFrame() (bool, error) {
	f, err := c.dec.PopVideoFrame()
	if err != nil {
		return false, err
	}
	if f == nil {
		c.metrics.RecordFrameGrab(false, false)
		c.log.Trace().Int("frames_grabbed", c.framesGrabbed).Msg("no frame ready")
		return false, nil
	}

	slot := c.strategy.RequestTargetTexture()
	if f.Texture != nil {
		if slot.Tex != nil && slot.Tex != f.Texture {
			slot.Tex.Release()
		}
		slot.Tex = f.Texture
	} else {
		if c.staging == nil || c.staging.Rect.Dx() != f.Width || c.staging.Rect.Dy() != f.Height {
			c.staging = image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
		}
		copy(c.staging.Pix, f.Pix)
		if slot.Tex == nil || slot.Tex.Width != f.Width || slot.Tex.Height != f.Height {
			if slot.Tex != nil {
				slot.Tex.Release()
				slot.Tex = nil
			}
			tex, err := c.r.NewTexture(f.Width, f.Height)
			if err != nil {
				return false, fmt.Errorf("frame %d: %w", f.Meta.FrameIdx, err)
			}
			slot.Tex = tex
		}
		if err := c.r.Upload(slot.Tex, c.staging); err != nil {
			return false, fmt.Errorf("frame %d: %w", f.Meta.FrameIdx, err)
		}
	}
	c.frameW, c.frameH = f.Width, f.Height
	c.mu.Lock()
	c.frame = f.Meta
	c.framesGrabbed++
	c.mu.Unlock()
	c.metrics.RecordFrameGrab(true, f.Texture != nil)
	return true, nil
}

// DrawFrame composites the clip with its current alpha. It draws nothing
// before the first frame or after the clip finished.
func (c *Clip) DrawFrame(r render.Renderer) bool {
	if c.finished.Load() || c.framesGrabbed == 0 {
		return false
	}
	c.mu.RLock()
	alpha := c.alpha
	c.mu.RUnlock()
	dst := render.FitRect(c.frameW, c.frameH, render.Viewport(r))
	return c.strategy.Draw(r, alpha, c.clock.InterframeDelta(), dst)
}

// FadeOut schedules the clip to end fadeOut seconds after t.
func (c *Clip) FadeOut(t float64) {
	end := t + math.Max(0, c.meta.FadeOut)
	if end < c.endTime {
		c.endTime = end
		c.log.Debug().Float64("at", t).Float64("end", end).Msg("fade out")
	}
}

// SkipTime seeks forward in the decoder and restarts the timing baseline.
func (c *Clip) SkipTime(seconds float64) {
	c.dec.SkipTime(seconds)
	c.clock.Reset()
}

// ResetTiming drops the decode clock baseline, e.g. after a pause.
func (c *Clip) ResetTiming() { c.clock.Reset() }

// InheritFramesFrom seeds the display ring with prev's frames so a
// continuous clip starts without a gap.
func (c *Clip) InheritFramesFrom(prev *Clip) {
	if prev == nil {
		return
	}
	c.strategy.InheritFramesFrom(prev.strategy)
	if n := len(c.strategy.Frames()); n > 0 {
		c.frameW, c.frameH = prev.frameW, prev.frameH
		c.mu.Lock()
		c.framesGrabbed = n
		c.mu.Unlock()
	}
}

// Stop halts the decoder, marks the clip finished and releases its frames.
func (c *Clip) Stop() {
	c.stopOnce.Do(func() {
		c.dec.Stop()
		c.finish("stopped")
		c.strategy.Release()
	})
}

// Alpha is the cross-fade opacity from the last Update.
func (c *Clip) Alpha() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alpha
}

func (c *Clip) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// FrameMetadata returns the metadata of the newest grabbed frame.
func (c *Clip) FrameMetadata() decoder.FrameMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// InterframeDelta is the sub-frame position from the last Update.
func (c *Clip) InterframeDelta() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.delta
}

// SecondsRemaining is the time left at t before the clip ends.
func (c *Clip) SecondsRemaining(t float64) float64 {
	return math.Max(0, c.secondsOut(t))
}

func (c *Clip) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		ID:            c.ID.String(),
		Path:          c.meta.Path,
		State:         c.state.String(),
		Mode:          c.strategy.Mode().String(),
		Alpha:         c.alpha,
		Delta:         c.delta,
		FramesGrabbed: c.framesGrabbed,
		Frame:         c.frame,
		DecodeFPS:     c.clock.FPS(),
	}
}

func (c *Clip) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish is idempotent; the first reason wins.
func (c *Clip) finish(reason string) {
	if c.finished.Swap(true) {
		return
	}
	c.mu.Lock()
	c.state = Finished
	c.alpha = 0
	c.reason = reason
	c.mu.Unlock()
	if c.running {
		c.metrics.RecordClipFinish(reason)
	}
	c.log.Debug().Str("reason", reason).Msg("clip finished")
}

// FinishReason explains why the clip finished, or "" while it runs.
func (c *Clip) FinishReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}

func (c *Clip) emit(d diag.Diagnostic) {
	if c.diagnose != nil {
		c.diagnose(d)
	}
}
