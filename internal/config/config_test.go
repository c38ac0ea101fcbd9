package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
display:
  mode: 1
  width: 640
decoder:
  fps: 30
playback:
  fade_in_s: 2
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeLinear, cfg.Display.Mode)
	assert.Equal(t, 640, cfg.Display.Width)
	assert.Equal(t, 720, cfg.Display.Height)
	assert.Equal(t, 30.0, cfg.Decoder.FPS)
	assert.Equal(t, 25, cfg.Decoder.BufferFrames)
	assert.Equal(t, 2.0, cfg.Playback.FadeInS)
	assert.Equal(t, 5.0, cfg.Playback.FadeOutS)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDisplayModeNames(t *testing.T) {
	for in, want := range map[string]DisplayMode{
		"discrete": ModeDiscrete, "off": ModeDiscrete, "0": ModeDiscrete,
		"Linear": ModeLinear, "1": ModeLinear,
		"cubic": ModeCubic, " 2 ": ModeCubic,
	} {
		got, err := ParseDisplayMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDisplayMode("bicubic")
	assert.Error(t, err)
	assert.Equal(t, "mode(7)", DisplayMode(7).String())
}

func TestValidateRejectsNonPositiveFPS(t *testing.T) {
	for _, fps := range []float64{0, -25} {
		cfg := Default()
		cfg.Decoder.FPS = fps
		assert.Error(t, cfg.Validate(), "fps=%v", fps)
	}
	cfg := Default()
	cfg.Display.Mode = DisplayMode(5)
	cfg.Playback.FadeOutS = -1
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTripsModeName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Display.Mode = ModeLinear
	require.NoError(t, Save(path, cfg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "mode: linear")

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestStoreWritesBackAndRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	s := NewStore(Default(), path, zerolog.Nop())

	require.NoError(t, s.SetDisplayMode(ModeDiscrete))
	assert.Equal(t, ModeDiscrete, s.DisplayMode())
	saved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeDiscrete, saved.Display.Mode)

	err = s.Update(func(c *Config) { c.Decoder.FPS = 0 })
	require.Error(t, err)
	assert.Equal(t, 20.0, s.DecodeFPS())

	in, out := s.Fades()
	assert.Equal(t, 5.0, in)
	assert.Equal(t, 5.0, out)
	assert.Equal(t, 25, s.BufferFrames())
}
