//go:build gl

package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/edream/internal/app"
	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/render/glrender"
	"github.com/coreman2200/edream/internal/sequence"
	"github.com/coreman2200/edream/internal/ws"
)

const windowSupported = true

func init() {
	// GLFW and GL calls must stay on the main thread.
	runtime.LockOSThread()
}

func runWindow(ctx context.Context, store *config.Store, pl sequence.Playlist, o playOptions) error {
	c := store.Snapshot()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	w, h := c.Display.Width, c.Display.Height
	var monitor *glfw.Monitor
	if c.Display.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		if mode := monitor.GetVideoMode(); mode != nil {
			w, h = mode.Width, mode.Height
		}
	}
	window, err := glfw.CreateWindow(w, h, "edream", monitor, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	glfw.SwapInterval(1)
	if c.Display.Fullscreen {
		window.SetInputMode(glfw.CursorMode, glfw.CursorHidden)
	}

	fbw, fbh := window.GetFramebufferSize()
	r, err := glrender.New(fbw, fbh, window.SwapBuffers)
	if err != nil {
		return err
	}
	defer r.Close()
	r.Capture = o.snapshot != "" || (c.Ambient.Driver != "" && c.Ambient.Driver != "off")
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		r.Resize(width, height)
	})

	core, err := startCore(ctx, store, r, pl)
	if err != nil {
		return err
	}
	defer core.Close()
	window.SetKeyCallback(keyHandler(core))

	last := glfw.GetTime()
	for n := 0; !window.ShouldClose() && (o.frames <= 0 || n < o.frames); n++ {
		select {
		case <-ctx.Done():
			return writeSnapshot(o.snapshot, r.Snapshot())
		default:
		}
		now := glfw.GetTime()
		dt := now - last
		last = now
		if err := core.Step(dt); err != nil {
			return err
		}
		glfw.PollEvents()
		if core.Idle() {
			log.Info().Int("frames", n+1).Msg("playback finished")
			break
		}
	}
	return writeSnapshot(o.snapshot, r.Snapshot())
}

// keyHandler maps playback keys onto control commands. It runs inside
// PollEvents, on the render thread.
func keyHandler(core *app.Core) glfw.KeyCallback {
	paused := false
	return func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape, glfw.KeyQ:
			w.SetShouldClose(true)
		case glfw.KeyRight:
			core.Apply(ws.Command{Op: ws.OpNext})
		case glfw.KeyLeft:
			core.Apply(ws.Command{Op: ws.OpPrevious})
		case glfw.KeyUp:
			core.Apply(ws.Command{Op: ws.OpSkip, Seconds: 10})
		case glfw.KeySpace:
			paused = !paused
			if paused {
				core.Apply(ws.Command{Op: ws.OpPause})
			} else {
				core.Apply(ws.Command{Op: ws.OpResume})
			}
		case glfw.Key1:
			core.Apply(ws.Command{Op: ws.OpMode, Mode: "discrete"})
		case glfw.Key2:
			core.Apply(ws.Command{Op: ws.OpMode, Mode: "linear"})
		case glfw.Key3:
			core.Apply(ws.Command{Op: ws.OpMode, Mode: "cubic"})
		}
	}
}
