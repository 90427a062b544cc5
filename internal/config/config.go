// Package config loads and saves the application's YAML configuration,
// creating a default file on first run.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the calendar API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is an IANA zone name for reminder wall-clock math.
	// Empty means the device's local clock.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds the state file and the seed cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// SeedURL is the static seed-events resource fetched once at
	// startup. Empty disables seeding.
	SeedURL string `yaml:"seed_url" json:"seed_url"`

	// SoundPath is the notification sound asset.
	SoundPath string `yaml:"sound_path" json:"sound_path"`

	// PopupSeconds is how long a reminder popup stays up before
	// auto-dismissing.
	PopupSeconds int `yaml:"popup_seconds" json:"popup_seconds"`

	// WatchState reloads the store when the state file is edited on
	// disk outside the process.
	WatchState bool `yaml:"watch_state" json:"watch_state"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8765",
		Timezone:     "",
		DataDir:      "./var",
		SeedURL:      "",
		SoundPath:    "./assets/notify.mp3",
		PopupSeconds: 5,
		WatchState:   true,
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8765"
	}
	if c.DataDir == "" {
		c.DataDir = "./var"
	}
	if c.PopupSeconds <= 0 {
		c.PopupSeconds = 5
	}
}

// StatePath is the key-value state file inside DataDir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// SeedCacheDir is where fetched seed bodies are cached.
func (c *Config) SeedCacheDir() string {
	return filepath.Join(c.DataDir, "seed-cache")
}

// PopupTTL is PopupSeconds as a duration.
func (c *Config) PopupTTL() time.Duration {
	return time.Duration(c.PopupSeconds) * time.Second
}

// Location resolves Timezone, falling back to the local clock on an
// empty or unknown name.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// A missing file is a first run: a default config is written (0600,
// parent dir created) and returned. An existing file is unmarshaled
// and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600 perms,
// parent dir 0700).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwidget-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
