package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete dotsync configuration
type Config struct {
	Repo    RepoConfig    `yaml:"repo"`
	Machine MachineConfig `yaml:"machine"`
	Archive ArchiveConfig `yaml:"archive"`
	Sync    SyncConfig    `yaml:"sync"`
}

// RepoConfig configures the local dotfiles repository clone
type RepoConfig struct {
	Path   string `yaml:"path"`
	Remote string `yaml:"remote"`
	Branch string `yaml:"branch"`
}

// MachineConfig configures how this machine identifies itself
type MachineConfig struct {
	Nickname string `yaml:"nickname"`
}

// ArchiveConfig configures the local safety archive
type ArchiveConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// SyncConfig configures remote sync behavior
type SyncConfig struct {
	MaxRetries  int  `yaml:"max_retries"`
	SetUpstream bool `yaml:"set_upstream"`
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "dotsync", "config.yaml")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "dotsync", "config.yaml")
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = expandPath(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables and ~ in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandPath expands environment variables and a leading ~ to the home
// directory.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || len(p) > 1 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Repo.Path = expandPath(c.Repo.Path)
	c.Repo.Remote = os.ExpandEnv(c.Repo.Remote)
	c.Repo.Branch = os.ExpandEnv(c.Repo.Branch)
	c.Machine.Nickname = os.ExpandEnv(c.Machine.Nickname)
	c.Archive.Dir = expandPath(c.Archive.Dir)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Repo.Remote == "" {
		c.Repo.Remote = "origin"
	}
	if c.Repo.Branch == "" {
		c.Repo.Branch = "main"
	}
	if c.Archive.Dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Archive.Dir = filepath.Join(home, ".dotsync", "archive")
		}
	}
	if c.Archive.RetentionDays == 0 {
		c.Archive.RetentionDays = 30
	}
	if c.Sync.MaxRetries == 0 {
		c.Sync.MaxRetries = 4
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Repo.Path == "" {
		return fmt.Errorf("repo.path is required")
	}
	if !filepath.IsAbs(c.Repo.Path) {
		return fmt.Errorf("repo.path must be an absolute path: %s", c.Repo.Path)
	}

	if c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir is required")
	}
	if !filepath.IsAbs(c.Archive.Dir) {
		return fmt.Errorf("archive.dir must be an absolute path: %s", c.Archive.Dir)
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("archive.retention_days must not be negative: %d", c.Archive.RetentionDays)
	}

	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative: %d", c.Sync.MaxRetries)
	}

	return nil
}

// RegistryPath returns the path of the shared machine registry inside the
// repository clone.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Repo.Path, "registry.json")
}

// DotfilesDir returns the directory within the repo holding per-machine
// dotfile copies.
func (c *Config) DotfilesDir() string {
	return filepath.Join(c.Repo.Path, "dotfiles")
}
