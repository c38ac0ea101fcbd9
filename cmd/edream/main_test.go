package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/edream/internal/config"
)

func TestEffectiveConfigAppliesFlags(t *testing.T) {
	base := *config.Default()
	c, err := effectiveConfig(base, playOptions{mode: "linear", fps: 30, decodeFPS: 24, addr: ":9999"})
	require.NoError(t, err)
	assert.Equal(t, config.ModeLinear, c.Display.Mode)
	assert.Equal(t, 30, c.Display.FPS)
	assert.Equal(t, 24.0, c.Decoder.FPS)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.True(t, c.Server.Enabled)

	c, err = effectiveConfig(base, playOptions{})
	require.NoError(t, err)
	assert.Equal(t, base.Display, c.Display)

	_, err = effectiveConfig(base, playOptions{mode: "bicubic"})
	assert.Error(t, err)
	_, err = effectiveConfig(base, playOptions{decodeFPS: -1})
	assert.Error(t, err)
}

func TestPlaylistFor(t *testing.T) {
	_, err := playlistFor(nil, config.Playback{})
	assert.Error(t, err)

	pl, err := playlistFor([]string{"synthetic://grad"}, config.Playback{Loop: true})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 1)
	assert.True(t, pl.Loop)

	dir := t.TempDir()
	path := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - path: synthetic://solid\n  - path: synthetic://grad\n"), 0o644))
	pl, err = playlistFor(nil, config.Playback{Playlist: path})
	require.NoError(t, err)
	assert.Len(t, pl.Entries, 2)
}

func TestSimPlaylist(t *testing.T) {
	pl := simPlaylist(3, 4, 1)
	require.NoError(t, pl.Validate())
	require.Len(t, pl.Entries, 3)
	assert.Contains(t, pl.Entries[0].Path, "synthetic://grad")
	assert.Contains(t, pl.Entries[1].Path, "synthetic://solid")
	assert.Equal(t, 1.0, *pl.Entries[2].FadeOutS)
	assert.Equal(t, 4.0, pl.Entries[2].DurationS)
}

func TestProbeCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"probe", "synthetic://index?frames=50&fps=25"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `"frames": 50`)
	assert.Contains(t, out.String(), `"duration_s": 2`)
}
