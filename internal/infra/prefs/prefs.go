// Package prefs persists listener preferences (play mode and volume) in a
// small TOML file.
package prefs

import (
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Prefs holds the persisted preferences.
type Prefs struct {
	PlayMode string  `toml:"play_mode"`
	Volume   float64 `toml:"volume"`
}

// Defaults returns the preferences used when nothing valid is stored.
func Defaults() Prefs {
	return Prefs{
		PlayMode: "sequential",
		Volume:   1.0,
	}
}

// Store reads and writes preferences at a fixed path. A store with an empty
// path keeps nothing.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path, or "" for a store that keeps nothing.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored preferences. A missing or unreadable file yields
// the defaults; individual invalid values fall back to their default.
func (s *Store) Load() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := Defaults()
	if s.path == "" {
		return def
	}

	var p Prefs
	md, err := toml.DecodeFile(s.path, &p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zlog.Warn().Msgf("prefs: ignoring unreadable file: path=%s err=%v", s.path, err)
		}
		return def
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		zlog.Debug().Msgf("prefs: unknown keys ignored: %v", undecoded)
	}

	if !md.IsDefined("play_mode") || p.PlayMode == "" {
		p.PlayMode = def.PlayMode
	}
	if !md.IsDefined("volume") || math.IsNaN(p.Volume) || p.Volume < 0 || p.Volume > 1 {
		p.Volume = def.Volume
	}
	return p
}

// Save writes the preferences atomically.
func (s *Store) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create prefs directory")
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to encode prefs")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync prefs")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close prefs")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed to replace prefs file")
	}
	return nil
}
