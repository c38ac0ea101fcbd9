package config

import (
	"sync"

	"github.com/rs/zerolog"
)

// Store is the shared, persisted settings view. Reads take the read lock;
// writes persist to Path when one is set.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	Path string
	log  zerolog.Logger
}

func NewStore(cfg *Config, path string, log zerolog.Logger) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: *cfg, Path: path, log: log.With().Str("component", "config").Logger()}
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) DisplayMode() DisplayMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Display.Mode
}

func (s *Store) DecodeFPS() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Decoder.FPS
}

func (s *Store) BufferFrames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Decoder.BufferFrames
}

// Fades returns the default fade-in and fade-out seconds.
func (s *Store) Fades() (in, out float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Playback.FadeInS, s.cfg.Playback.FadeOutS
}

func (s *Store) SetDisplayMode(m DisplayMode) error {
	return s.Update(func(c *Config) { c.Display.Mode = m })
}

// Update applies fn under the write lock, validates, and saves.
// An invalid result is rolled back.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	prev := s.cfg
	fn(&s.cfg)
	if err := s.cfg.Validate(); err != nil {
		s.cfg = prev
		s.mu.Unlock()
		return err
	}
	snap := s.cfg
	s.mu.Unlock()
	return s.save(&snap)
}

func (s *Store) save(c *Config) error {
	if s.Path == "" {
		return nil
	}
	if err := Save(s.Path, c); err != nil {
		s.log.Warn().Err(err).Str("path", s.Path).Msg("config save failed")
		return err
	}
	return nil
}
