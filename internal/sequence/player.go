package sequence

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/decoder"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/playback"
	"github.com/coreman2200/edream/internal/render"
)

// Hooks are callbacks into the host. They run on the goroutine that drives
// Tick.
type Hooks struct {
	OnClipStarted  func(index int, s playback.Stats)
	OnClipFinished func(index int, s playback.Stats, reason string)
	OnDiagnostic   diag.Sink
}

// Options are the Player's collaborators.
type Options struct {
	Renderer render.Renderer
	// Decoders returns a fresh decoder for a clip path.
	Decoders func(path string) decoder.Decoder
	Store    *config.Store
	Clock    playback.Clock
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Stats is a snapshot of the timeline for overlays and the stats feed.
type Stats struct {
	State    PlayerState     `json:"state"`
	Now      float64         `json:"now_s"`
	Index    int             `json:"index"`
	Entry    string          `json:"entry,omitempty"`
	Entries  int             `json:"entries"`
	Current  *playback.Stats `json:"current,omitempty"`
	Incoming *playback.Stats `json:"incoming,omitempty"`
}

// Player owns the playlist timeline: the current clip, the clip fading in
// over it, and the master time both are updated against.
type Player struct {
	State PlayerState

	pl   Playlist
	nowS float64

	cur    *playback.Clip
	curIdx int
	inc    *playback.Clip
	incIdx int

	// set when arming failed for every candidate; cleared on rotation
	armFailed bool

	opts  Options
	hooks Hooks
	log   zerolog.Logger
}

// NewPlayer constructs an idle Player.
func NewPlayer(opts Options, h Hooks) *Player {
	if opts.Decoders == nil {
		o := decoder.Options{Logger: opts.Logger}
		if opts.Store != nil {
			o.BufferFrames = opts.Store.BufferFrames()
		}
		opts.Decoders = decoder.ForPath(func() decoder.Decoder { return decoder.NewVidio(o) }, o)
	}
	return &Player{
		State:  Idle,
		opts:   opts,
		hooks:  h,
		incIdx: -1,
		log:    opts.Logger.With().Str("component", "player").Logger(),
	}
}

// Load replaces the playlist. Running clips are stopped and the timeline
// resets to Idle.
func (p *Player) Load(pl Playlist) error {
	if err := pl.Validate(); err != nil {
		if errors.Is(err, ErrEmptyPlaylist) {
			p.emit(diag.Diagnostic{
				Severity:       diag.Err,
				Code:           diag.PlaylistEmpty,
				Summary:        "Nothing to play",
				Detail:         err.Error(),
				SuggestedFixes: []string{"Add entries to the playlist", "Point playback.playlist at a folder of videos"},
			})
		}
		return err
	}
	p.Stop()
	p.pl = pl
	p.log.Info().Int("entries", len(pl.Entries)).Bool("loop", pl.Loop).Msg("playlist loaded")
	return nil
}

func (p *Player) Playlist() Playlist { return p.pl }

// Start moves to Running; the first clip launches on the next Tick.
func (p *Player) Start() {
	if p.State == Running || len(p.pl.Entries) == 0 {
		return
	}
	p.State = Running
}

// Pause freezes the timeline.
func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

// Resume continues a paused timeline without a frame-timing jump.
func (p *Player) Resume() {
	if p.State != Paused {
		return
	}
	p.State = Running
	for _, c := range []*playback.Clip{p.cur, p.inc} {
		if c != nil {
			c.ResetTiming()
		}
	}
}

// Stop stops every clip and rewinds to the first entry.
func (p *Player) Stop() {
	if p.inc != nil {
		p.retire(p.inc, p.incIdx)
		p.inc, p.incIdx = nil, -1
	}
	if p.cur != nil {
		p.retire(p.cur, p.curIdx)
		p.cur = nil
	}
	p.State = Idle
	p.nowS = 0
	p.curIdx = 0
	p.armFailed = false
}

// Tick advances the timeline by dt seconds and updates the active clips.
func (p *Player) Tick(dt float64) {
	if p.State != Running || len(p.pl.Entries) == 0 {
		return
	}
	if p.cur == nil {
		p.cur, p.curIdx = p.launch(p.curIdx, nil)
		if p.cur == nil {
			p.endOfPlaylist()
			return
		}
	}
	if dt > 0 {
		p.nowS += dt
	}

	p.cur.Update(p.nowS)
	if p.inc != nil {
		p.inc.Update(p.nowS)
	}

	// Arm the next clip once the current one starts fading out.
	if p.inc == nil && !p.armFailed && !p.cur.Finished() && p.fadingOut(p.cur) {
		if next := p.step(p.curIdx, 1); next >= 0 && !p.pl.Entries[next].Continuous {
			p.arm(next)
		}
	}

	if p.inc != nil && p.inc.Finished() {
		p.retire(p.inc, p.incIdx)
		p.inc, p.incIdx = nil, -1
	}
	if p.cur.Finished() {
		p.rotate()
	}
}

func (p *Player) fadingOut(c *playback.Clip) bool {
	return c.FramesGrabbed() > 0 && c.SecondsRemaining(p.nowS) <= c.Meta().FadeOut
}

// rotate retires the finished current clip and promotes the incoming one,
// or launches the next entry directly.
func (p *Player) rotate() {
	prev, prevIdx := p.cur, p.curIdx
	p.armFailed = false
	if p.inc != nil {
		p.cur, p.curIdx = p.inc, p.incIdx
		p.inc, p.incIdx = nil, -1
		p.retire(prev, prevIdx)
		return
	}
	next := p.step(prevIdx, 1)
	if next < 0 {
		p.retire(prev, prevIdx)
		p.cur = nil
		p.endOfPlaylist()
		return
	}
	// continuous entries take over prev's frames, so launch before retiring
	p.cur, p.curIdx = p.launch(next, prev)
	p.retire(prev, prevIdx)
	if p.cur == nil {
		p.endOfPlaylist()
		return
	}
	p.cur.Update(p.nowS)
}

func (p *Player) arm(idx int) {
	c, at := p.launch(idx, nil)
	if c == nil {
		p.armFailed = true
		return
	}
	p.inc, p.incIdx = c, at
	p.log.Debug().Int("index", at).Float64("at", p.nowS).Msg("armed next clip")
}

// launch starts the entry at idx, walking forward past entries that fail
// to open. It returns nil when no entry could be started.
func (p *Player) launch(idx int, inherit *playback.Clip) (*playback.Clip, int) {
	for attempt := 0; attempt < len(p.pl.Entries) && idx >= 0; attempt++ {
		e := p.pl.Entries[idx]
		c, err := p.newClip(idx)
		if err == nil {
			if inherit != nil && e.Continuous {
				c.InheritFramesFrom(inherit)
			}
			if err = c.Start(e.SeekFrame); err == nil {
				if p.hooks.OnClipStarted != nil {
					p.hooks.OnClipStarted(idx, c.Stats())
				}
				return c, idx
			}
			p.retire(c, idx)
		}
		p.log.Warn().Err(err).Int("index", idx).Str("path", e.Path).Msg("skipping clip")
		p.emit(diag.Diagnostic{
			Severity: diag.Warn,
			Code:     diag.ClipSkipped,
			Summary:  "Clip skipped",
			Detail:   err.Error(),
			Evidence: map[string]any{"index": idx, "path": e.Path},
		})
		idx = p.step(idx, 1)
	}
	return nil, -1
}

func (p *Player) newClip(idx int) (*playback.Clip, error) {
	e := p.pl.Entries[idx]
	in, out := config.Default().Playback.FadeInS, config.Default().Playback.FadeOutS
	if p.opts.Store != nil {
		in, out = p.opts.Store.Fades()
	}
	meta := e.Meta(in, out)
	if e.Continuous && e.FadeInS == nil {
		meta.FadeIn = 0
	}
	if next := p.step(idx, 1); next >= 0 && p.pl.Entries[next].Continuous {
		meta.FadeOut = 0
	}
	return playback.NewClip(meta, p.nowS, playback.Options{
		Renderer:  p.opts.Renderer,
		Decoder:   p.opts.Decoders(e.Path),
		Store:     p.opts.Store,
		DecodeFPS: e.DecodeFPS,
		Clock:     p.opts.Clock,
		Ease:      playback.Ease(e.Ease),
		Logger:    p.opts.Logger,
		Metrics:   p.opts.Metrics,
		Diagnose:  p.emit,
	})
}

// retire stops c and reports why it finished.
func (p *Player) retire(c *playback.Clip, idx int) {
	c.Stop()
	reason := c.FinishReason()
	p.log.Debug().Int("index", idx).Str("reason", reason).Msg("clip retired")
	if p.hooks.OnClipFinished != nil {
		p.hooks.OnClipFinished(idx, c.Stats(), reason)
	}
}

func (p *Player) endOfPlaylist() {
	p.log.Info().Float64("at", p.nowS).Msg("playlist finished")
	p.State = Idle
	p.curIdx = 0
}

// step moves dir entries from idx, wrapping when the playlist loops.
// It returns -1 past either end of a non-looping playlist.
func (p *Player) step(idx, dir int) int {
	n := len(p.pl.Entries)
	if n == 0 {
		return -1
	}
	ni := idx + dir
	if ni >= 0 && ni < n {
		return ni
	}
	if !p.pl.Loop {
		return -1
	}
	return ((ni % n) + n) % n
}

// Next fades the current clip out now and brings in the following entry.
func (p *Player) Next() { p.jump(1) }

// Previous fades the current clip out now and brings in the preceding entry.
func (p *Player) Previous() { p.jump(-1) }

func (p *Player) jump(dir int) {
	if p.cur == nil {
		return
	}
	target := p.step(p.curIdx, dir)
	if target < 0 {
		return
	}
	p.cur.FadeOut(p.nowS)
	if p.inc != nil && p.incIdx == target {
		// already fading in
		return
	}
	if p.inc != nil {
		p.retire(p.inc, p.incIdx)
		p.inc, p.incIdx = nil, -1
	}
	p.armFailed = false
	p.arm(target)
}

// Seek skips the current clip forward by seconds.
func (p *Player) Seek(seconds float64) {
	if p.cur == nil {
		return
	}
	if seconds <= 0 {
		p.log.Debug().Float64("seconds", seconds).Msg("only forward seeks are supported")
		return
	}
	p.cur.SkipTime(seconds)
}

// Draw clears the target, composites the current then the incoming clip,
// and presents.
func (p *Player) Draw(r render.Renderer) error {
	r.Clear(render.Black)
	if p.cur != nil {
		p.cur.DrawFrame(r)
	}
	if p.inc != nil {
		p.inc.DrawFrame(r)
	}
	return r.Present()
}

// Current returns the clip being played, or nil.
func (p *Player) Current() *playback.Clip { return p.cur }

// Incoming returns the clip fading in over the current one, or nil.
func (p *Player) Incoming() *playback.Clip { return p.inc }

func (p *Player) Now() float64 { return p.nowS }

func (p *Player) Stats() Stats {
	s := Stats{State: p.State, Now: p.nowS, Index: p.curIdx, Entries: len(p.pl.Entries)}
	if p.curIdx >= 0 && p.curIdx < len(p.pl.Entries) {
		s.Entry = p.pl.Entries[p.curIdx].Label()
	}
	if p.cur != nil {
		cs := p.cur.Stats()
		s.Current = &cs
	}
	if p.inc != nil {
		is := p.inc.Stats()
		s.Incoming = &is
	}
	return s
}

func (p *Player) emit(d diag.Diagnostic) {
	if p.hooks.OnDiagnostic != nil {
		p.hooks.OnDiagnostic(d)
	}
}

// SafePlayer serializes access to a Player shared between the render loop
// and readers such as the stats server.
type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(opts Options, h Hooks) *SafePlayer {
	return &SafePlayer{P: NewPlayer(opts, h)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}
