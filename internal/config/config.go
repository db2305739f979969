// Package config loads bookpeek settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidPort    = errors.New("invalid port")
	ErrConfigTooLarge = errors.New("config file too large")
)

// MaxFileSize bounds the config file read.
const MaxFileSize = 1 << 20

// DefaultPort is the port used when none is configured.
const DefaultPort = 6419

// FileNames are searched in the project root, in order.
var FileNames = []string{"bookpeek.yaml", "bookpeek.yml"}

// Environment variables overriding file settings.
const (
	EnvBuildRepo   = "BOOKPEEK_BUILD_REPO"
	EnvDefaultBook = "BOOKPEEK_DEFAULT_BOOK"
)

// Config holds all settings.
type Config struct {
	Root        string `yaml:"root"`        // Content repository root (default: directory argument)
	BuildRepo   string `yaml:"buildRepo"`   // Repository holding build/<book>_<ident>.html
	DefaultBook string `yaml:"defaultBook"` // Book used when opening rendered HTML
	Port        int    `yaml:"port"`
	Browser     bool   `yaml:"browser"` // Open a browser on start
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Port:    DefaultPort,
		Browser: true,
	}
}

// Load reads the YAML file at path on top of Default. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, len(data), MaxFileSize)
	}

	cfg := Default()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
		}
	}
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover loads the first of FileNames found in dir, or Default when none
// exists.
func Discover(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return Load(path)
		}
	}
	return Default(), nil
}

// ApplyEnv overrides settings from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBuildRepo)); v != "" {
		c.BuildRepo = v
	}
	if v := strings.TrimSpace(getenv(EnvDefaultBook)); v != "" {
		c.DefaultBook = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// resolvePaths makes relative root and buildRepo paths relative to base, the
// directory holding the config file.
func (c *Config) resolvePaths(base string) {
	if c.Root != "" && !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(base, c.Root)
	}
	if c.BuildRepo != "" && !filepath.IsAbs(c.BuildRepo) {
		c.BuildRepo = filepath.Join(base, c.BuildRepo)
	}
}
