package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/edream/internal/app"
	"github.com/coreman2200/edream/internal/config"
	diag "github.com/coreman2200/edream/internal/diagnostics"
	"github.com/coreman2200/edream/internal/playback"
	"github.com/coreman2200/edream/internal/render"
	"github.com/coreman2200/edream/internal/sequence"
)

var (
	simClips    int
	simDuration float64
	simFade     float64
	simFPS      int
	simMode     string
)

// simulateCmd plays generated clips headless and prints the timeline events.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play synthetic clips headless and print timeline events",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		c.Display.FPS = simFPS
		c.Display.Width, c.Display.Height = 160, 90
		c.Server.Enabled = false
		c.Ambient.Driver = "off"
		if simMode != "" {
			m, err := config.ParseDisplayMode(simMode)
			if err != nil {
				return err
			}
			c.Display.Mode = m
		}
		if err := c.Validate(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		core, err := app.InitCore(config.NewStore(&c, "", log.Logger), app.Options{
			Renderer: render.NewSoftware(c.Display.Width, c.Display.Height),
			Logger:   log.Logger,
			Hooks: sequence.Hooks{
				OnClipStarted: func(i int, s playback.Stats) {
					fmt.Fprintf(out, "[start]  #%d %s mode=%s\n", i, s.Path, s.Mode)
				},
				OnClipFinished: func(i int, s playback.Stats, reason string) {
					fmt.Fprintf(out, "[finish] #%d %s reason=%s frames=%d\n", i, s.Path, reason, s.FramesGrabbed)
				},
				OnDiagnostic: func(d diag.Diagnostic) {
					fmt.Fprintf(out, "[diag]   %s %s\n", d.Code, d.Summary)
				},
			},
		})
		if err != nil {
			return err
		}
		defer core.Close()
		if err := core.Play(simPlaylist(simClips, simDuration, simFade)); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return core.Run(ctx, simFPS, 0)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simClips, "clips", 3, "number of synthetic clips")
	f.Float64Var(&simDuration, "duration", 6, "seconds per clip")
	f.Float64Var(&simFade, "fade", 1.5, "fade in/out seconds")
	f.IntVar(&simFPS, "fps", 30, "display frames per second")
	f.StringVar(&simMode, "mode", "", "display mode: discrete | linear | cubic")
}

// simPlaylist alternates gradient and solid clips of the given length.
func simPlaylist(n int, duration, fade float64) sequence.Playlist {
	colors := []string{"ff4020", "20a0ff", "40ff60", "ffd040"}
	pl := sequence.Playlist{Version: "playlist.v1"}
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("synthetic://grad?fps=25&frames=%d&speed=0.3", int(duration*25)+1)
		if i%2 == 1 {
			path = fmt.Sprintf("synthetic://solid?fps=25&frames=%d&color=%s&pulse=0.5", int(duration*25)+1, colors[i%len(colors)])
		}
		fadeIn, fadeOut := fade, fade
		pl.Entries = append(pl.Entries, sequence.Entry{
			Name:      fmt.Sprintf("sim-%d", i),
			Path:      path,
			FadeInS:   &fadeIn,
			FadeOutS:  &fadeOut,
			DurationS: duration,
		})
	}
	return pl
}
