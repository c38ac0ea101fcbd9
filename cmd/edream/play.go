package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/edream/internal/app"
	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/decoder"
	"github.com/coreman2200/edream/internal/render"
	"github.com/coreman2200/edream/internal/sequence"
)

type playOptions struct {
	frames    int
	snapshot  string
	mode      string
	fps       int
	decodeFPS float64
	headless  bool
	addr      string
}

var playOpts playOptions

var playCmd = &cobra.Command{
	Use:   "play [playlist.yaml | directory | video | synthetic://...]",
	Short: "Play a playlist",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig(*cfg, playOpts)
		if err != nil {
			return err
		}
		pl, err := playlistFor(args, c.Playback)
		if err != nil {
			return err
		}
		store := config.NewStore(&c, cfgFile, log.Logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if playOpts.headless || !windowSupported {
			if !playOpts.headless {
				log.Warn().Msg("built without the gl tag; playing headless")
			}
			return runHeadless(ctx, store, pl, playOpts)
		}
		return runWindow(ctx, store, pl, playOpts)
	},
}

func init() {
	f := playCmd.Flags()
	f.IntVar(&playOpts.frames, "frames", 0, "stop after this many frames (0 = until the playlist ends)")
	f.StringVar(&playOpts.snapshot, "snapshot", "", "write the last composited frame to this PNG")
	f.StringVar(&playOpts.mode, "mode", "", "display mode: discrete | linear | cubic")
	f.IntVar(&playOpts.fps, "fps", 0, "display frames per second")
	f.Float64Var(&playOpts.decodeFPS, "decode-fps", 0, "decode frames per second")
	f.BoolVar(&playOpts.headless, "headless", false, "render in software without a window")
	f.StringVar(&playOpts.addr, "addr", "", "stats server listen address")
}

// effectiveConfig applies non-zero flags over c.
func effectiveConfig(c config.Config, o playOptions) (config.Config, error) {
	if o.mode != "" {
		m, err := config.ParseDisplayMode(o.mode)
		if err != nil {
			return c, err
		}
		c.Display.Mode = m
	}
	c.Display.FPS = firstNonZero(o.fps, c.Display.FPS)
	c.Decoder.FPS = firstNonZeroFloat(o.decodeFPS, c.Decoder.FPS)
	if o.addr != "" {
		c.Server.Addr = o.addr
		c.Server.Enabled = true
	}
	return c, c.Validate()
}

// playlistFor resolves the play argument, falling back to the configured playlist.
func playlistFor(args []string, p config.Playback) (sequence.Playlist, error) {
	src := p.Playlist
	if len(args) == 1 {
		src = args[0]
	}
	if src == "" {
		return sequence.Playlist{}, fmt.Errorf("no playlist given and playback.playlist is empty")
	}
	if decoder.IsSynthetic(src) {
		return sequence.FromPaths([]string{src}, p.Loop), nil
	}
	return sequence.LoadPlaylist(src)
}

func startCore(ctx context.Context, store *config.Store, r render.Renderer, pl sequence.Playlist) (*app.Core, error) {
	core, err := app.InitCore(store, app.Options{Renderer: r, Logger: log.Logger})
	if err != nil {
		return nil, err
	}
	core.Serve(ctx)
	if err := core.Play(pl); err != nil {
		core.Close()
		return nil, err
	}
	return core, nil
}

func runHeadless(ctx context.Context, store *config.Store, pl sequence.Playlist, o playOptions) error {
	c := store.Snapshot()
	r := render.NewSoftware(c.Display.Width, c.Display.Height)
	r.Grade = render.Grade{ExposureEV: c.Display.ExposureEV, Gamma: c.Display.Gamma}

	core, err := startCore(ctx, store, r, pl)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Run(ctx, c.Display.FPS, o.frames); err != nil {
		return err
	}
	return writeSnapshot(o.snapshot, r.Snapshot())
}

func writeSnapshot(path string, img image.Image) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	log.Info().Str("path", path).Msg("snapshot written")
	return f.Close()
}

func firstNonZero(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func firstNonZeroFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
