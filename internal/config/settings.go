package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	LAStoolsDir string        `yaml:"lastools_dir"` // directory containing the LAStools binaries; empty = PATH
	DefaultDir  string        `yaml:"default_dir"`  // default working directory for runs
	ParamsFile  string        `yaml:"params_file"`  // JSON file extending the tool parameter catalog
	Workers     int           `yaml:"workers"`      // parallel processes for batch runs
	MaxRuntime  time.Duration `yaml:"max_runtime"`  // per-run timeout
	IdleTimeout time.Duration `yaml:"idle_timeout"` // kill a run after no output for this duration
	FailFast    bool          `yaml:"fail_fast"`    // stop a batch on the first failure

	History *HistoryConfig `yaml:"history,omitempty"`
}

// HistoryConfig controls the run history store.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path,omitempty"` // default: .laspilot/history.db
	Keep     int    `yaml:"keep,omitempty"` // prune to this many runs; 0 = keep all
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &s, nil
}

// HistoryEnabled reports whether runs should be recorded.
func (s *Settings) HistoryEnabled() bool {
	return s.History == nil || !s.History.Disabled
}

// HistoryPath returns the history database path, applying the default.
func (s *Settings) HistoryPath() string {
	if s.History != nil && s.History.Path != "" {
		return s.History.Path
	}
	return filepath.Join(".laspilot", "history.db")
}

// HistoryKeep returns the prune threshold; 0 means keep everything.
func (s *Settings) HistoryKeep() int {
	if s.History == nil {
		return 0
	}
	return s.History.Keep
}
