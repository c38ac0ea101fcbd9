package playback

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/decoder"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/display"
	"github.com/coreman2200/edream/internal/render"
)

type manualClock struct {
	t     time.Time
	calls int
}

func newManualClock() *manualClock { return &manualClock{t: time.Unix(1700000000, 0)} }

func (m *manualClock) Now() time.Time          { m.calls++; return m.t }
func (m *manualClock) Advance(d time.Duration) { m.t = m.t.Add(d) }

// fakeDecoder hands out numbered frames when ready.
type fakeDecoder struct {
	mu       sync.Mutex
	ready    bool
	next     int
	max      int
	pops     int
	err      error
	startErr error
	started  bool
	stopped  bool
	skipped  []float64
	// frame overrides the default 4x2 Pix frames when set.
	frame func(idx int) *decoder.Frame
}

func (f *fakeDecoder) Start(path string, seekFrame int) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	f.next = seekFrame
	return nil
}

func (f *fakeDecoder) Stop() { f.stopped = true }

func (f *fakeDecoder) PopVideoFrame() (*decoder.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pops++
	if f.err != nil {
		return nil, f.err
	}
	if !f.ready {
		return nil, nil
	}
	if f.max > 0 && f.next > f.max {
		return nil, decoder.ErrEndOfStream
	}
	if f.frame != nil {
		fr := f.frame(f.next)
		f.next++
		return fr, nil
	}
	fr := &decoder.Frame{
		Width:  4,
		Height: 2,
		Pix:    make([]byte, 4*2*4),
		Meta:   decoder.FrameMetadata{FrameIdx: f.next, MaxFrameIdx: f.max},
	}
	for i := 0; i < len(fr.Pix); i += 4 {
		fr.Pix[i], fr.Pix[i+3] = byte(f.next), 0xff
	}
	f.next++
	return fr, nil
}

func (f *fakeDecoder) SkipTime(seconds float64) { f.skipped = append(f.skipped, seconds) }

func (f *fakeDecoder) VideoInfo() decoder.VideoInfo {
	return decoder.VideoInfo{Width: 4, Height: 2, FPS: 25, Frames: f.max + 1}
}

func (f *fakeDecoder) popCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pops
}

type rig struct {
	r     *render.Software
	dec   *fakeDecoder
	clock *manualClock
	store *config.Store
	diags []diag.Diagnostic
}

func newRig(mode config.DisplayMode) *rig {
	cfg := config.Default()
	cfg.Display.Mode = mode
	return &rig{
		r:     render.NewSoftware(8, 4),
		dec:   &fakeDecoder{ready: true, max: 100000},
		clock: newManualClock(),
		store: config.NewStore(cfg, "", zerolog.Nop()),
	}
}

func (g *rig) clip(t *testing.T, meta Meta, start float64, fps float64) *Clip {
	t.Helper()
	c, err := NewClip(meta, start, Options{
		Renderer:  g.r,
		Decoder:   g.dec,
		Store:     g.store,
		DecodeFPS: fps,
		Clock:     g.clock,
		Logger:    zerolog.Nop(),
		Diagnose:  func(d diag.Diagnostic) { g.diags = append(g.diags, d) },
	})
	require.NoError(t, err)
	return c
}

func TestDecoderClockRejectsNonPositiveFPS(t *testing.T) {
	for _, fps := range []float64{0, -1} {
		_, err := NewDecoderClock(newManualClock(), fps)
		assert.ErrorIs(t, err, ErrInvalidFPS)
	}
}

func TestInterframeDeltaStaysInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, fps := range []float64{0.5, 12, 23.976, 25, 30, 60, 144} {
		mc := newManualClock()
		d, err := NewDecoderClock(mc, fps)
		require.NoError(t, err)
		for i := 0; i < 5000; i++ {
			step := time.Duration(rng.Int63n(int64(200 * time.Millisecond)))
			if i%97 == 0 {
				step = time.Duration(1/fps*float64(time.Second)) * time.Duration(rng.Intn(4))
			}
			mc.Advance(step)
			d.NeedsNewFrame(10, 3)
			delta := d.InterframeDelta()
			require.GreaterOrEqual(t, delta, 0.0, "fps=%v step=%d", fps, i)
			require.Less(t, delta, 1.0, "fps=%v step=%d", fps, i)
		}
	}
}

func TestDecoderClockFillingRingIgnoresTime(t *testing.T) {
	mc := newManualClock()
	d, err := NewDecoderClock(mc, 25)
	require.NoError(t, err)
	for grabbed := 0; grabbed <= 3; grabbed++ {
		assert.True(t, d.NeedsNewFrame(grabbed, 3))
	}
	assert.Zero(t, mc.calls)
	assert.False(t, d.Started())

	assert.True(t, d.NeedsNewFrame(4, 3), "first timed call always grabs")
	assert.True(t, d.Started())
	mc.Advance(20 * time.Millisecond)
	assert.False(t, d.NeedsNewFrame(5, 3))
	assert.InDelta(t, 0.5, d.InterframeDelta(), 1e-9)
	mc.Advance(30 * time.Millisecond)
	assert.True(t, d.NeedsNewFrame(5, 3))
	assert.InDelta(t, 0.25, d.InterframeDelta(), 1e-9)

	d.Reset()
	assert.False(t, d.Started())
	assert.Zero(t, d.InterframeDelta())
}

func TestDecoderClockBackwardsTimeIsClamped(t *testing.T) {
	mc := newManualClock()
	d, err := NewDecoderClock(mc, 10)
	require.NoError(t, err)
	d.NeedsNewFrame(1, 0)
	mc.Advance(50 * time.Millisecond)
	d.NeedsNewFrame(1, 0)
	mc.Advance(-time.Second)
	assert.False(t, d.NeedsNewFrame(1, 0))
	assert.InDelta(t, 0.5, d.InterframeDelta(), 1e-9)
}

func TestFadeAlphaEnvelope(t *testing.T) {
	// fade in 2s, fade out 2s, 10s clip
	assert.InDelta(t, 0.5, FadeAlpha(1, 9, 2, 2, nil), 1e-12)
	assert.InDelta(t, 1.0, FadeAlpha(3, 7, 2, 2, nil), 1e-12)
	assert.InDelta(t, 0.25, FadeAlpha(1, 1, 2, 2, nil), 1e-12)
	assert.Equal(t, 1.0, FadeAlpha(0, 0.1, 0, 0, nil), "zero-length fades are open")
	assert.Equal(t, 0.0, FadeAlpha(-1, 5, 2, 2, nil))
	assert.InDelta(t, 0.5, FadeAlpha(1, 9, 2, 2, Ease("smooth")), 1e-12)
	assert.Less(t, FadeAlpha(0.5, 9, 2, 2, Ease("cubic")), 0.25)
}

func TestClipFadeAlphaOnTimeline(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	c := g.clip(t, Meta{Path: "a.mp4", FadeIn: 2, FadeOut: 2, Duration: 10}, 0, 25)
	require.NoError(t, c.Start(0))

	require.True(t, c.Update(0))
	assert.Equal(t, 0.0, c.Alpha())
	require.True(t, c.Update(1))
	assert.InDelta(t, 0.5, c.Alpha(), 1e-9)
	assert.Equal(t, Playing, c.State())
	require.True(t, c.Update(3))
	assert.InDelta(t, 1.0, c.Alpha(), 1e-9)
	require.True(t, c.Update(9))
	assert.InDelta(t, 0.5, c.Alpha(), 1e-9)
	assert.Equal(t, FadingOut, c.State())
}

func TestUpdateAfterEndTimeFinishes(t *testing.T) {
	g := newRig(config.ModeLinear)
	c := g.clip(t, Meta{Path: "a.mp4", Duration: 5}, 0, 25)
	require.NoError(t, c.Start(0))
	require.True(t, c.Update(1))

	assert.False(t, c.Update(5.01))
	assert.True(t, c.Finished())
	assert.Equal(t, Finished, c.State())
	assert.False(t, c.Update(2), "finished clips never update again")
	assert.False(t, c.DrawFrame(g.r))
}

func TestUpdateBeforeStartTimeHasNoSideEffects(t *testing.T) {
	g := newRig(config.ModeCubic)
	c := g.clip(t, Meta{Path: "a.mp4"}, 10, 25)
	require.NoError(t, c.Start(0))
	assert.False(t, c.Update(5))
	assert.Zero(t, g.dec.popCount())
	assert.False(t, c.Finished())
	assert.Equal(t, Started, c.State())
}

func TestCubicForcesGrabsUntilRingIsFull(t *testing.T) {
	g := newRig(config.ModeCubic)
	g.dec.ready = false
	c := g.clip(t, Meta{Path: "a.mp4", FadeIn: 1, FadeOut: 1}, 0, 25)
	require.IsType(t, &display.Cubic{}, c.Strategy())
	require.NoError(t, c.Start(0))

	tick := time.Second / 60
	now := 0.0
	update := func() bool {
		g.clock.Advance(tick)
		now += tick.Seconds()
		return c.Update(now)
	}

	// no frame ready: every update still asks for one
	for i := 1; i <= 4; i++ {
		assert.True(t, update())
		assert.Equal(t, i, g.dec.popCount())
	}
	assert.Zero(t, c.FramesGrabbed())
	assert.False(t, c.Finished())
	assert.Zero(t, g.clock.calls, "clock is not sampled while filling")

	g.dec.ready = true
	for i := 1; i <= 4; i++ {
		update()
		assert.Equal(t, i, c.FramesGrabbed())
	}
	assert.Zero(t, g.clock.calls)

	// first timed update grabs, then 25fps gating over 60fps ticks
	update()
	assert.Equal(t, 9, g.dec.popCount())
	update()
	update()
	assert.Equal(t, 9, g.dec.popCount())
	update()
	assert.Equal(t, 10, g.dec.popCount())
	assert.Equal(t, 6, c.FramesGrabbed())
	assert.True(t, c.DrawFrame(g.r))
}

func TestNotReadyFrameKeepsClipAlive(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	g.dec.ready = false
	c := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))
	assert.True(t, c.Update(0.1))
	assert.False(t, c.Finished())
	assert.False(t, c.DrawFrame(g.r), "nothing to draw before the first frame")
}

func TestDecodeErrorFinishesClip(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	c := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))
	require.True(t, c.Update(0))

	g.dec.err = errors.New("corrupt packet")
	g.clock.Advance(time.Second)
	c.clock.Reset()
	assert.False(t, c.Update(1))
	assert.True(t, c.Finished())
	assert.Equal(t, "decode_error", c.FinishReason())
	require.NotEmpty(t, g.diags)
	assert.Equal(t, diag.DecoderFailed, g.diags[len(g.diags)-1].Code)
}

func TestNaturalEndFinishesClip(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	g.dec.max = 3
	c := g.clip(t, Meta{Path: "short.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))

	now := 0.0
	for i := 0; i < 50 && !c.Finished(); i++ {
		c.Update(now)
		g.clock.Advance(40 * time.Millisecond)
		now += 0.04
	}
	assert.True(t, c.Finished())
	assert.Equal(t, "ended", c.FinishReason())
	assert.Equal(t, 3, c.FrameMetadata().FrameIdx)
}

func TestStartFailureFinishesClip(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	g.dec.startErr = errors.New("no such file")
	c := g.clip(t, Meta{Path: "missing.mp4"}, 0, 25)
	assert.Error(t, c.Start(0))
	assert.True(t, c.Finished())
	assert.False(t, c.Update(0))
	require.Len(t, g.diags, 1)
	assert.Equal(t, diag.DecoderOpen, g.diags[0].Code)
}

func TestShaderFailureFallsBackAndDowngradesSetting(t *testing.T) {
	g := newRig(config.ModeCubic)
	g.r.DisableShader(render.KernelCubic)
	c := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)

	assert.IsType(t, &display.Discrete{}, c.Strategy())
	assert.Equal(t, config.ModeDiscrete, g.store.DisplayMode())
	require.Len(t, g.diags, 1)
	assert.Equal(t, diag.DisplayFallback, g.diags[0].Code)
	assert.Equal(t, diag.Warn, g.diags[0].Severity)
}

func TestFadeOutOnlyShortens(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	c := g.clip(t, Meta{Path: "a.mp4", FadeOut: 2, Duration: 20}, 0, 25)
	c.FadeOut(4)
	assert.Equal(t, 6.0, c.EndTime())
	c.FadeOut(8)
	assert.Equal(t, 6.0, c.EndTime())
}

func TestSkipTimeResetsTimingBaseline(t *testing.T) {
	g := newRig(config.ModeDiscrete)
	c := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))
	c.Update(0)
	c.Update(0.1)
	require.True(t, c.clock.Started())

	c.SkipTime(30)
	assert.Equal(t, []float64{30}, g.dec.skipped)
	assert.False(t, c.clock.Started())
}

func TestInheritFramesAvoidsGap(t *testing.T) {
	g := newRig(config.ModeCubic)
	prev := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)
	require.NoError(t, prev.Start(0))
	for i := 0; i < 4; i++ {
		prev.Update(float64(i) / 60)
	}
	require.Equal(t, 4, prev.FramesGrabbed())

	next := g.clip(t, Meta{Path: "b.mp4"}, 1, 25)
	next.InheritFramesFrom(prev)
	assert.Equal(t, 4, next.FramesGrabbed())
	assert.Equal(t, prev.Strategy().Frames(), next.Strategy().Frames())
	assert.True(t, next.DrawFrame(g.r))

	prev.Stop()
	assert.Len(t, next.Strategy().Frames(), 4)
	next.Stop()
	assert.Zero(t, g.r.LiveTextures())
}

func TestGrabAdoptsDecoderTexturesAcrossResize(t *testing.T) {
	g := newRig(config.ModeCubic)
	g.dec.frame = func(idx int) *decoder.Frame {
		w := 4
		if idx >= 20 {
			w = 8
		}
		tex, err := g.r.NewTexture(w, 2)
		require.NoError(t, err)
		return &decoder.Frame{Width: w, Height: 2, Texture: tex, Meta: decoder.FrameMetadata{FrameIdx: idx}}
	}
	c := g.clip(t, Meta{Path: "hw.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))

	for i := 0; i < 40; i++ {
		ok, err := c.GrabVideoFrame()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 40, c.FramesGrabbed())
	assert.Equal(t, 8, c.frameW)
	assert.Equal(t, 39, c.FrameMetadata().FrameIdx)
	// replaced decoder textures are released, one per ring slot survives
	assert.Equal(t, 4, g.r.LiveTextures())
	assert.True(t, c.DrawFrame(g.r))

	c.Stop()
	assert.Zero(t, g.r.LiveTextures())
}

func TestGrabReallocatesOnFrameResize(t *testing.T) {
	g := newRig(config.ModeCubic)
	g.dec.frame = func(idx int) *decoder.Frame {
		w := 4
		if idx >= 20 {
			w = 8
		}
		return &decoder.Frame{Width: w, Height: 2, Pix: make([]byte, w*2*4), Meta: decoder.FrameMetadata{FrameIdx: idx}}
	}
	c := g.clip(t, Meta{Path: "sw.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))

	for i := 0; i < 40; i++ {
		ok, err := c.GrabVideoFrame()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 40, c.FramesGrabbed())
	assert.Equal(t, 8, c.frameW)
	assert.Equal(t, 8, c.staging.Rect.Dx())
	for _, f := range c.Strategy().Frames() {
		assert.Equal(t, 8, f.Width)
	}
	assert.Equal(t, 4, g.r.LiveTextures())
	assert.True(t, c.DrawFrame(g.r))

	c.Stop()
	assert.Zero(t, g.r.LiveTextures())
}

func TestStopReleasesEverything(t *testing.T) {
	g := newRig(config.ModeLinear)
	c := g.clip(t, Meta{Path: "a.mp4"}, 0, 25)
	require.NoError(t, c.Start(0))
	c.Update(0)
	c.Update(0.02)
	require.Positive(t, g.r.LiveTextures())

	c.Stop()
	c.Stop()
	assert.True(t, g.dec.stopped)
	assert.True(t, c.Finished())
	assert.Zero(t, g.r.LiveTextures())
}

func TestStatsReadableWhileUpdating(t *testing.T) {
	g := newRig(config.ModeLinear)
	c := g.clip(t, Meta{Path: "a.mp4", FadeIn: 0.5}, 0, 25)
	require.NoError(t, c.Start(0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s := c.Stats()
			_ = c.FrameMetadata()
			_ = c.Finished()
			if s.Path != "a.mp4" {
				t.Errorf("unexpected path %q", s.Path)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		g.clock.Advance(time.Second / 60)
		c.Update(float64(i) / 60)
	}
	<-done
	s := c.Stats()
	assert.Equal(t, "linear", s.Mode)
	assert.Equal(t, 25.0, s.DecodeFPS)
	assert.Positive(t, s.FramesGrabbed)
}
