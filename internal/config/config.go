package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Naming defines how files are keyed inside an inventory
type Naming string

const (
	NamingRelative Naming = "relative"
	NamingFlat     Naming = "flat"
)

// OnError defines what happens when a sync action fails
type OnError string

const (
	OnErrorAbort    OnError = "abort"
	OnErrorContinue OnError = "continue"
)

// Config represents the complete contentsync configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Hash      HashConfig      `yaml:"hash"`
	Inventory InventoryConfig `yaml:"inventory"`
	Sync      SyncConfig      `yaml:"sync"`
	Report    ReportConfig    `yaml:"report"`
}

// PathsConfig configures the two trees being synchronized
type PathsConfig struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// HashConfig configures content digests
type HashConfig struct {
	Algorithm string `yaml:"algorithm"`
}

// InventoryConfig configures how trees are scanned
type InventoryConfig struct {
	Naming     Naming `yaml:"naming"`
	Workers    int    `yaml:"workers"`
	SkipHidden bool   `yaml:"skip_hidden"`
}

// SyncConfig configures how actions are applied
type SyncConfig struct {
	OnError OnError `yaml:"on_error"`
}

// ReportConfig configures the optional run report. Path is always a host path.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration with every default applied and no paths set
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	// Paths may still come from the command line, so they are checked by
	// Validate rather than here.
	if err := cfg.validateOptions(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all path fields
func (c *Config) expandEnv() {
	c.Paths.Source = os.ExpandEnv(c.Paths.Source)
	c.Paths.Dest = os.ExpandEnv(c.Paths.Dest)
	c.Report.Path = os.ExpandEnv(c.Report.Path)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Hash.Algorithm == "" {
		c.Hash.Algorithm = "sha256"
	}
	if c.Inventory.Naming == "" {
		c.Inventory.Naming = NamingRelative
	}
	if c.Sync.OnError == "" {
		c.Sync.OnError = OnErrorAbort
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.Source == "" {
		return fmt.Errorf("paths.source is required")
	}
	if c.Paths.Dest == "" {
		return fmt.Errorf("paths.dest is required")
	}

	src, err := filepath.Abs(c.Paths.Source)
	if err != nil {
		return fmt.Errorf("paths.source: %w", err)
	}
	dst, err := filepath.Abs(c.Paths.Dest)
	if err != nil {
		return fmt.Errorf("paths.dest: %w", err)
	}
	if src == dst {
		return fmt.Errorf("paths.source and paths.dest must differ: %s", src)
	}
	if isWithin(dst, src) || isWithin(src, dst) {
		return fmt.Errorf("paths.source and paths.dest must not be nested: %s, %s", src, dst)
	}

	return c.validateOptions()
}

func (c *Config) validateOptions() error {
	switch c.Hash.Algorithm {
	case "sha256", "sha1":
		// valid
	default:
		return fmt.Errorf("invalid hash.algorithm: %s (must be sha256 or sha1)", c.Hash.Algorithm)
	}

	switch c.Inventory.Naming {
	case NamingRelative, NamingFlat:
		// valid
	default:
		return fmt.Errorf("invalid inventory.naming: %s (must be relative or flat)", c.Inventory.Naming)
	}

	if c.Inventory.Workers < 0 {
		return fmt.Errorf("inventory.workers must not be negative: %d", c.Inventory.Workers)
	}

	switch c.Sync.OnError {
	case OnErrorAbort, OnErrorContinue:
		// valid
	default:
		return fmt.Errorf("invalid sync.on_error policy: %s (must be abort or continue)", c.Sync.OnError)
	}

	return nil
}

// SourceDir returns the absolute source root
func (c *Config) SourceDir() string {
	return absOrSelf(c.Paths.Source)
}

// DestDir returns the absolute destination root
func (c *Config) DestDir() string {
	return absOrSelf(c.Paths.Dest)
}

func absOrSelf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// isWithin reports whether path lies below dir
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
