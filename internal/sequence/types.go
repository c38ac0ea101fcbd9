package sequence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/edream/internal/playback"
)

var ErrEmptyPlaylist = errors.New("sequence: playlist has no entries")

// Entry is one clip of a playlist. Nil fades use the configured defaults.
type Entry struct {
	Name      string   `yaml:"name,omitempty" json:"name,omitempty"`
	Path      string   `yaml:"path" json:"path"`
	FadeInS   *float64 `yaml:"fade_in_s,omitempty" json:"fade_in_s,omitempty"`
	FadeOutS  *float64 `yaml:"fade_out_s,omitempty" json:"fade_out_s,omitempty"`
	DurationS float64  `yaml:"duration_s,omitempty" json:"duration_s,omitempty"` // 0 plays to the end
	SeekFrame int      `yaml:"seek_frame,omitempty" json:"seek_frame,omitempty"`
	DecodeFPS float64  `yaml:"decode_fps,omitempty" json:"decode_fps,omitempty"`
	// Continuous entries pick up the previous clip's frames instead of
	// cross-fading into it.
	Continuous bool   `yaml:"continuous,omitempty" json:"continuous,omitempty"`
	Ease       string `yaml:"ease,omitempty" json:"ease,omitempty"` // "linear","smooth","cubic"
}

// Label is the entry name, or the file name when unnamed.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return filepath.Base(e.Path)
}

// Meta resolves the entry against default fades.
func (e Entry) Meta(defaultIn, defaultOut float64) playback.Meta {
	m := playback.Meta{Path: e.Path, FadeIn: defaultIn, FadeOut: defaultOut, Duration: e.DurationS}
	if e.FadeInS != nil {
		m.FadeIn = *e.FadeInS
	}
	if e.FadeOutS != nil {
		m.FadeOut = *e.FadeOutS
	}
	return m
}

// Playlist is an ordered list of clips.
type Playlist struct {
	Version string  `yaml:"version,omitempty" json:"version,omitempty"` // e.g. "playlist.v1"
	Loop    bool    `yaml:"loop,omitempty" json:"loop,omitempty"`
	Entries []Entry `yaml:"entries" json:"entries"`
}

func (pl Playlist) Validate() error {
	if len(pl.Entries) == 0 {
		return ErrEmptyPlaylist
	}
	var errs []error
	for i, e := range pl.Entries {
		if strings.TrimSpace(e.Path) == "" {
			errs = append(errs, fmt.Errorf("entry %d: path is required", i))
		}
		if e.DurationS < 0 {
			errs = append(errs, fmt.Errorf("entry %d: duration_s must be >= 0", i))
		}
		if e.DecodeFPS < 0 {
			errs = append(errs, fmt.Errorf("entry %d: decode_fps must be >= 0", i))
		}
		if e.SeekFrame < 0 {
			errs = append(errs, fmt.Errorf("entry %d: seek_frame must be >= 0", i))
		}
		if (e.FadeInS != nil && *e.FadeInS < 0) || (e.FadeOutS != nil && *e.FadeOutS < 0) {
			errs = append(errs, fmt.Errorf("entry %d: fades must be >= 0", i))
		}
	}
	return errors.Join(errs...)
}

// ParsePlaylist decodes a YAML playlist.
func ParsePlaylist(data []byte) (Playlist, error) {
	var pl Playlist
	if err := yaml.Unmarshal(data, &pl); err != nil {
		return Playlist{}, fmt.Errorf("parse playlist: %w", err)
	}
	if err := pl.Validate(); err != nil {
		return Playlist{}, err
	}
	return pl, nil
}

// LoadPlaylist reads a playlist file. A directory becomes a looping
// playlist of the videos inside it, in name order.
func LoadPlaylist(path string) (Playlist, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Playlist{}, err
	}
	if fi.IsDir() {
		return scanDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Playlist{}, err
		}
		pl, err := ParsePlaylist(data)
		if err != nil {
			return Playlist{}, fmt.Errorf("%s: %w", path, err)
		}
		return pl, nil
	default:
		return FromPaths([]string{path}, false), nil
	}
}

// FromPaths builds a playlist that plays each path with default fades.
func FromPaths(paths []string, loop bool) Playlist {
	pl := Playlist{Version: "playlist.v1", Loop: loop}
	for _, p := range paths {
		pl.Entries = append(pl.Entries, Entry{Path: p})
	}
	return pl
}

var videoExts = map[string]bool{".mp4": true, ".mkv": true, ".mov": true, ".webm": true, ".avi": true}

func scanDir(dir string) (Playlist, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return Playlist{}, err
	}
	var paths []string
	for _, e := range ents {
		if e.IsDir() || !videoExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return Playlist{}, fmt.Errorf("%s: %w", dir, ErrEmptyPlaylist)
	}
	sort.Strings(paths)
	return FromPaths(paths, true), nil
}

// PlayerState enumerates timeline states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)
