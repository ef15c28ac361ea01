package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Retention bounds. Values outside the range are clamped on load and save;
// zero disables pruning entirely.
const (
	DefaultRetentionDays = 90
	MaxRetentionDays     = 3650
)

// Settings is the small durable configuration document kept next to the
// history document.
type Settings struct {
	RetentionDays int `json:"retentionDays"`
}

// Clamp bounds the retention to a sane positive range.
func (s Settings) Clamp() Settings {
	if s.RetentionDays < 0 {
		s.RetentionDays = 0
	}
	if s.RetentionDays > MaxRetentionDays {
		s.RetentionDays = MaxRetentionDays
	}
	return s
}

// Default returns the settings used when no document exists yet.
func Default() Settings {
	return Settings{RetentionDays: DefaultRetentionDays}
}

// Store persists settings in a single JSON file on disk.
type Store struct {
	path string
}

// NewStore creates a JSON-backed settings store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads settings from disk or returns defaults when missing.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Settings{}, err
	}

	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, err
	}
	return cfg.Clamp(), nil
}

// Save writes settings through a temp file and an atomic rename, matching
// the history document's write path.
func (s *Store) Save(cfg Settings) (err error) {
	cfg = cfg.Clamp()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "settings-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
