package app

import (
	"context"
	"time"

	"github.com/coreman2200/edream/internal/ambient"
	"github.com/coreman2200/edream/internal/config"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/sequence"
	"github.com/coreman2200/edream/internal/ws"
)

// Step runs one frame on the render goroutine: pending control commands,
// the timeline tick, the draw, and the side outputs.
func (c *Core) Step(dt float64) error {
	start := time.Now()
	c.drainCommands()

	var (
		err          error
		alpha, delta float64
	)
	c.Player.With(func(p *sequence.Player) {
		p.Tick(dt)
		err = p.Draw(c.Renderer)
		if cur := p.Current(); cur != nil {
			alpha, delta = cur.Alpha(), cur.InterframeDelta()
		}
	})
	c.Metrics.RecordPresent(time.Since(start).Seconds(), alpha, delta)
	c.Server.FrameDone()
	c.frame++

	if c.Ambient != nil && c.frame%c.ambientEvery == 0 {
		c.updateAmbient()
	}
	if time.Since(c.lastStats) >= 100*time.Millisecond {
		c.lastStats = time.Now()
		c.Server.BroadcastStats()
	}
	return err
}

// updateAmbient reports the first failed strip write of a run of failures
// and logs when writes succeed again.
func (c *Core) updateAmbient() {
	err := c.Ambient.Update(c.Renderer.Snapshot())
	switch {
	case err == nil && c.ambientFailed:
		c.ambientFailed = false
		c.log.Info().Msg("ambient strip writes recovered")
	case err != nil && !c.ambientFailed:
		c.ambientFailed = true
		c.Hub.Push(diag.Diagnostic{
			Severity:       diag.Err,
			Code:           diag.AmbientWrite,
			Summary:        "Ambient strip write failed",
			Detail:         err.Error(),
			LikelyCauses:   []string{"Strip unplugged or unpowered", "SPI port reset"},
			SuggestedFixes: []string{"Check the strip wiring", "Run edream ambient test edges"},
			Evidence:       map[string]any{"frame": c.frame},
		})
	}
}

// Run drives Step from a ticker at fps until ctx is done, the playlist
// ends, or frames have been drawn (0 means no limit).
func (c *Core) Run(ctx context.Context, fps, frames int) error {
	if fps <= 0 {
		fps = 60
	}
	dt := time.Second / time.Duration(fps)
	tick := time.NewTicker(dt)
	defer tick.Stop()
	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := c.Step(dt.Seconds()); err != nil {
				return err
			}
			if c.Idle() {
				c.log.Info().Int("frames", n+1).Msg("playback finished")
				return nil
			}
		}
	}
	return nil
}

// Idle reports whether the timeline has stopped.
func (c *Core) Idle() bool {
	idle := false
	c.Player.With(func(p *sequence.Player) { idle = p.State == sequence.Idle })
	return idle
}

func (c *Core) drainCommands() {
	for {
		select {
		case cmd := <-c.Server.Commands():
			c.Apply(cmd)
		default:
			return
		}
	}
}

// Apply executes a control command. It must run on the render goroutine.
func (c *Core) Apply(cmd ws.Command) {
	log := c.log.With().Str("op", cmd.Op).Logger()
	switch cmd.Op {
	case ws.OpNext:
		c.Player.With(func(p *sequence.Player) { p.Next() })
	case ws.OpPrevious:
		c.Player.With(func(p *sequence.Player) { p.Previous() })
	case ws.OpPause:
		c.Player.With(func(p *sequence.Player) { p.Pause() })
	case ws.OpResume:
		c.Player.With(func(p *sequence.Player) { p.Resume() })
	case ws.OpSkip:
		c.Player.With(func(p *sequence.Player) { p.Seek(cmd.Seconds) })
	case ws.OpMode:
		m, err := config.ParseDisplayMode(cmd.Mode)
		if err == nil {
			err = c.Store.SetDisplayMode(m)
		}
		if err != nil {
			log.Warn().Err(err).Msg("display mode not changed")
			return
		}
		log.Info().Str("mode", m.String()).Msg("display mode applies from the next clip")
	case ws.OpAmbientTest:
		if c.Ambient == nil {
			log.Warn().Msg("ambient output is off")
			return
		}
		if err := c.Ambient.RunPattern(ambient.Kind(cmd.Pattern)); err != nil {
			c.Hub.Push(diag.Diagnostic{
				Severity: diag.Warn,
				Code:     diag.AmbientTest,
				Summary:  "Unknown ambient test",
				Detail:   err.Error(),
				Evidence: map[string]any{"pattern": cmd.Pattern},
			})
		}
	default:
		log.Warn().Msg("unknown control op")
	}
}
