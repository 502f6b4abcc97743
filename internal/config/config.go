// Package config loads the multiplexer's user-level settings from
// ~/.multiplex/config.yaml.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of config.yaml. Every field has a
// sensible zero value, so an absent file is equivalent to Config{}.
type Config struct {
	MaxSessions   int            `yaml:"max_sessions"`
	DefaultLayout string         `yaml:"default_layout"`
	Shell         string         `yaml:"shell"`
	Worktree      WorktreeConfig `yaml:"worktree"`
}

// WorktreeConfig controls whether new sessions get a private git worktree
// and how that worktree's branch is set up.
type WorktreeConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BranchFrom      string `yaml:"branch_from"`
	UseDetachedHead bool   `yaml:"use_detached_head"`
}

// GetBranchFrom returns the configured base branch, defaulting to "main".
func (w WorktreeConfig) GetBranchFrom() string {
	if w.BranchFrom == "" {
		return "main"
	}
	return w.BranchFrom
}

// ConfigDir returns the multiplexer's configuration directory
// (~/.multiplex/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".multiplex")
	}
	return filepath.Join(home, ".multiplex")
}

// Load reads the config from ~/.multiplex/config.yaml. A missing file is
// not an error — it returns the zero Config.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads the config from the given path. A missing file is not an
// error — it returns the zero Config.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WorktreesDir returns the directory under which private git worktrees
// are checked out.
func WorktreesDir() string {
	return filepath.Join(ConfigDir(), "worktrees")
}
