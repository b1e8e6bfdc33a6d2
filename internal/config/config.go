// Package config reads and writes the repository configuration stored as
// TOML in .gam/config.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/javanhut/gam/internal/refs"
)

// Storage strategies.
const (
	StrategyDeduplication = "deduplication"
	StrategyCompression   = "compression"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrUnknownKey    = errors.New("unknown config key")
)

// Config represents the repository configuration.
type Config struct {
	Core    CoreConfig    `toml:"core"`
	Storage StorageConfig `toml:"storage"`
	Color   ColorConfig   `toml:"color"`
}

// CoreConfig holds the tracked directory and timeline defaults.
type CoreConfig struct {
	GamePath        string `toml:"game_path"`
	DefaultTimeline string `toml:"default_timeline"`
	UseGamignore    bool   `toml:"use_gamignore"`
}

// StorageConfig selects how new blobs are written.
type StorageConfig struct {
	Strategy string `toml:"strategy"` // "deduplication" (default) or "compression"
}

// ColorConfig holds color settings
type ColorConfig struct {
	UI bool `toml:"ui"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig(gamePath string) *Config {
	return &Config{
		Core: CoreConfig{
			GamePath:        gamePath,
			DefaultTimeline: "main",
			UseGamignore:    true,
		},
		Storage: StorageConfig{Strategy: StrategyDeduplication},
		Color:   ColorConfig{UI: true},
	}
}

// Compress reports whether new blobs should be zstd-compressed.
func (c *Config) Compress() bool {
	return c.Storage.Strategy == StrategyCompression
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if err := refs.ValidateName(c.Core.DefaultTimeline); err != nil {
		return fmt.Errorf("%w: core.default_timeline: %v", ErrInvalidConfig, err)
	}
	switch c.Storage.Strategy {
	case StrategyDeduplication, StrategyCompression:
	default:
		return fmt.Errorf("%w: storage.strategy must be %q or %q, got %q",
			ErrInvalidConfig, StrategyDeduplication, StrategyCompression, c.Storage.Strategy)
	}
	return nil
}

// Read decodes a Config from r on top of the defaults, so keys missing
// from the file keep their default values.
func Read(r io.Reader) (*Config, error) {
	cfg := DefaultConfig("")
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes cfg to w.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := Write(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Keys lists every settable key in display order.
func Keys() []string {
	return []string{
		"core.game_path",
		"core.default_timeline",
		"core.use_gamignore",
		"storage.strategy",
		"color.ui",
	}
}

// GetValue retrieves a configuration value by key (e.g., "core.game_path")
func (c *Config) GetValue(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "core":
		switch field {
		case "game_path":
			return c.Core.GamePath, nil
		case "default_timeline":
			return c.Core.DefaultTimeline, nil
		case "use_gamignore":
			return strconv.FormatBool(c.Core.UseGamignore), nil
		}
	case "storage":
		if field == "strategy" {
			return c.Storage.Strategy, nil
		}
	case "color":
		if field == "ui" {
			return strconv.FormatBool(c.Color.UI), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// SetValue sets a configuration value by key. The result is validated;
// on error c is left unchanged.
func (c *Config) SetValue(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	next := *c
	switch {
	case section == "core" && field == "game_path":
		next.Core.GamePath = value
	case section == "core" && field == "default_timeline":
		next.Core.DefaultTimeline = value
	case section == "core" && field == "use_gamignore":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		next.Core.UseGamignore = b
	case section == "storage" && field == "strategy":
		next.Storage.Strategy = value
	case section == "color" && field == "ui":
		b, err := parseBool(key, value)
		if err != nil {
			return err
		}
		next.Color.UI = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func splitKey(key string) (string, string, error) {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" || strings.Contains(field, ".") {
		return "", "", fmt.Errorf("%w: %s (expected format: section.key)", ErrUnknownKey, key)
	}
	return section, field, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidConfig, key, value)
	}
	return b, nil
}
