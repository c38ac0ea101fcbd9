package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DisplayMode selects the frame display strategy. Stored as 0/1/2.
type DisplayMode int

const (
	ModeDiscrete DisplayMode = iota
	ModeLinear
	ModeCubic
)

func (m DisplayMode) String() string {
	switch m {
	case ModeDiscrete:
		return "discrete"
	case ModeLinear:
		return "linear"
	case ModeCubic:
		return "cubic"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseDisplayMode accepts a name ("cubic") or the stored number ("2").
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "discrete", "off", "0":
		return ModeDiscrete, nil
	case "linear", "1":
		return ModeLinear, nil
	case "cubic", "2":
		return ModeCubic, nil
	}
	return ModeDiscrete, fmt.Errorf("unknown display mode %q", s)
}

func (m DisplayMode) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *DisplayMode) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseDisplayMode(value.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

type Display struct {
	Mode       DisplayMode `yaml:"mode"`
	Width      int         `yaml:"width"`
	Height     int         `yaml:"height"`
	FPS        int         `yaml:"fps"`
	Fullscreen bool        `yaml:"fullscreen"`
	ExposureEV float64     `yaml:"exposure_ev"`
	Gamma      float64     `yaml:"gamma"`
}

type Decoder struct {
	FPS          float64 `yaml:"fps"`           // target decode framerate
	BufferFrames int     `yaml:"buffer_frames"` // decoded frames queued ahead of the clip
	Backend      string  `yaml:"backend"`       // "vidio" | "synthetic"
}

type Playback struct {
	FadeInS  float64 `yaml:"fade_in_s"`
	FadeOutS float64 `yaml:"fade_out_s"`
	Playlist string  `yaml:"playlist"`
	Loop     bool    `yaml:"loop"`
}

type Server struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Edges struct {
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
}

type Ambient struct {
	Driver     string  `yaml:"driver"` // "off" | "sim" | "spi"
	Port       string  `yaml:"port,omitempty"`
	LEDs       Edges   `yaml:"leds"`
	BudgetMA   float64 `yaml:"budget_ma"`
	WhiteCap   float64 `yaml:"white_cap"`
	Brightness float64 `yaml:"brightness"`
}

type Log struct {
	Verbose bool `yaml:"verbose"`
}

type Config struct {
	Display  Display  `yaml:"display"`
	Decoder  Decoder  `yaml:"decoder"`
	Playback Playback `yaml:"playback"`
	Server   Server   `yaml:"server"`
	Ambient  Ambient  `yaml:"ambient"`
	Log      Log      `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Display: Display{
			Mode:       ModeCubic,
			Width:      1280,
			Height:     720,
			FPS:        60,
			Fullscreen: true,
			Gamma:      1.0,
		},
		Decoder: Decoder{
			FPS:          20,
			BufferFrames: 25,
			Backend:      "vidio",
		},
		Playback: Playback{
			FadeInS:  5,
			FadeOutS: 5,
			Loop:     true,
		},
		Server: Server{
			Enabled: true,
			Addr:    ":8080",
		},
		Ambient: Ambient{
			Driver:     "off",
			LEDs:       Edges{Top: 30, Right: 17, Bottom: 30, Left: 17},
			BudgetMA:   3000,
			WhiteCap:   2.2,
			Brightness: 0.8,
		},
	}
}

// Validate rejects settings the playback core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Decoder.FPS <= 0 {
		errs = append(errs, fmt.Errorf("decoder.fps must be > 0, got %v", c.Decoder.FPS))
	}
	if c.Decoder.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("decoder.buffer_frames must be > 0, got %d", c.Decoder.BufferFrames))
	}
	if c.Display.FPS <= 0 {
		errs = append(errs, fmt.Errorf("display.fps must be > 0, got %d", c.Display.FPS))
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height))
	}
	if c.Display.Mode < ModeDiscrete || c.Display.Mode > ModeCubic {
		errs = append(errs, fmt.Errorf("display.mode out of range: %d", c.Display.Mode))
	}
	if c.Playback.FadeInS < 0 || c.Playback.FadeOutS < 0 {
		errs = append(errs, errors.New("playback fades must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func findConfigFile() string {
	candidates := []string{"./edream.yaml", "./config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".edream", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
