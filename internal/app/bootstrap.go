package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coreman2200/edream/internal/ambient"
	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/decoder"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/metrics"
	"github.com/coreman2200/edream/internal/playback"
	"github.com/coreman2200/edream/internal/render"
	"github.com/coreman2200/edream/internal/sequence"
	"github.com/coreman2200/edream/internal/ws"
)

// Core wires the player to its renderer, side outputs and servers.
type Core struct {
	Store    *config.Store
	Hub      *diag.Hub
	Metrics  *metrics.Metrics
	Player   *sequence.SafePlayer
	Server   *ws.State
	Ambient  *ambient.Output // nil when ambient output is off
	Renderer render.Renderer

	frame         uint64
	ambientEvery  uint64
	ambientFailed bool
	lastStats     time.Time
	log           zerolog.Logger
}

type Options struct {
	Renderer render.Renderer
	// Decoders overrides the configured decoder backend.
	Decoders func(path string) decoder.Decoder
	Clock    playback.Clock
	Registry *prometheus.Registry
	Logger   zerolog.Logger
	// Hooks are called after the Core's own clip bookkeeping.
	Hooks    sequence.Hooks
}

func InitCore(store *config.Store, opts Options) (*Core, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("init core: renderer is required")
	}
	cfg := store.Snapshot()
	log := opts.Logger

	// 1) Decoders
	decoders := opts.Decoders
	if decoders == nil {
		dopts := decoder.Options{BufferFrames: cfg.Decoder.BufferFrames, Logger: log}
		base, err := decoder.NewFactory(cfg.Decoder.Backend, dopts)
		if err != nil {
			return nil, fmt.Errorf("init core: %w", err)
		}
		decoders = decoder.ForPath(base, dopts)
	}

	// 2) Metrics and diagnostics
	m := metrics.New(opts.Registry)
	hub := diag.NewHub(64)
	hub.Subscribe(func(d diag.Diagnostic) {
		ev := log.Info()
		switch d.Severity {
		case diag.Warn:
			ev = log.Warn()
		case diag.Err:
			ev = log.Error()
		}
		ev.Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
	})

	c := &Core{
		Store:        store,
		Hub:          hub,
		Metrics:      m,
		Renderer:     opts.Renderer,
		ambientEvery: ambientDivider(cfg.Display.FPS),
		log:          log.With().Str("component", "core").Logger(),
	}

	// 3) Player
	hooks := sequence.Hooks{
		OnClipStarted: func(i int, s playback.Stats) {
			c.log.Info().Int("index", i).Str("path", s.Path).Str("mode", s.Mode).Msg("clip started")
			if opts.Hooks.OnClipStarted != nil {
				opts.Hooks.OnClipStarted(i, s)
			}
		},
		OnClipFinished: func(i int, s playback.Stats, reason string) {
			c.log.Info().Int("index", i).Str("path", s.Path).Str("reason", reason).
				Int("frames", s.FramesGrabbed).Msg("clip finished")
			if opts.Hooks.OnClipFinished != nil {
				opts.Hooks.OnClipFinished(i, s, reason)
			}
		},
		OnDiagnostic: func(d diag.Diagnostic) {
			hub.Push(d)
			if opts.Hooks.OnDiagnostic != nil {
				opts.Hooks.OnDiagnostic(d)
			}
		},
	}
	c.Player = sequence.NewSafePlayer(sequence.Options{
		Renderer: opts.Renderer,
		Decoders: decoders,
		Store:    store,
		Clock:    opts.Clock,
		Logger:   log,
		Metrics:  m,
	}, hooks)

	// 4) Ambient strip
	drv, err := ambient.Open(cfg.Ambient, log, hub.Push)
	if err != nil {
		return nil, fmt.Errorf("init core: %w", err)
	}
	if drv != nil {
		c.Ambient = ambient.NewOutput(cfg.Ambient, drv, m, log)
	}

	// 5) Stats, diagnostics and control
	c.Server = ws.NewState(c.Player, store, hub, m, log)
	return c, nil
}

// ambientDivider keeps strip updates near 30 per second.
func ambientDivider(fps int) uint64 {
	if fps <= 30 {
		return 1
	}
	return uint64((fps + 29) / 30)
}

// Play loads pl and starts the timeline.
func (c *Core) Play(pl sequence.Playlist) error {
	var err error
	c.Player.With(func(p *sequence.Player) {
		if err = p.Load(pl); err == nil {
			p.Start()
		}
	})
	return err
}

// Serve runs the stats server when enabled in the config.
func (c *Core) Serve(ctx context.Context) {
	cfg := c.Store.Snapshot()
	if !cfg.Server.Enabled {
		return
	}
	go func() {
		if err := c.Server.Serve(ctx, cfg.Server.Addr); err != nil {
			c.log.Error().Err(err).Str("addr", cfg.Server.Addr).Msg("stats server stopped")
		}
	}()
}

// Close stops playback and releases the ambient strip.
func (c *Core) Close() error {
	c.Player.With(func(p *sequence.Player) { p.Stop() })
	if c.Ambient != nil {
		return c.Ambient.Close()
	}
	return nil
}
