// Package config loads the framehub TOML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the complete configuration.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Catalog CatalogConfig `toml:"catalog"`
	Sync    SyncConfig    `toml:"sync"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StoreConfig locates the document database.
type StoreConfig struct {
	Path string `toml:"path"` // SQLite file, or ":memory:"
}

// CatalogConfig locates the item catalog.
type CatalogConfig struct {
	Path            string `toml:"path"`             // JSON or CUE catalog file
	RefreshInterval string `toml:"refresh_interval"` // Minimum gap between version checks (e.g. "1m")
	Watch           bool   `toml:"watch"`            // Reload on file change in long-running commands
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	Debounce string `toml:"debounce"` // Quiet period before a flush (e.g. "2.5s")
}

// SessionConfig selects whose document is tracked.
type SessionConfig struct {
	Kind   string `toml:"kind"`    // authenticated, anonymous or shared
	UserID string `toml:"user_id"` // Document id; generated for anonymous sessions when empty
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn or error
	Format string `toml:"format"` // text or json
}

// MetricsConfig controls the Prometheus endpoint of the watch command.
type MetricsConfig struct {
	Addr string `toml:"addr"` // Listen address; empty disables
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "framehub.db",
		},
		Catalog: CatalogConfig{
			Path:            "items.json",
			RefreshInterval: "1m",
			Watch:           true,
		},
		Sync: SyncConfig{
			Debounce: "2.5s",
		},
		Session: SessionConfig{
			Kind: "anonymous",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// DefaultPath returns ~/.framehub/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".framehub", "config.toml"), nil
}

// Load reads the configuration at path. A missing file yields the defaults;
// keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks every value that is parsed later.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}

	if d, err := time.ParseDuration(c.Catalog.RefreshInterval); err != nil || d < 0 {
		return fmt.Errorf("invalid catalog refresh interval %q", c.Catalog.RefreshInterval)
	}
	if d, err := time.ParseDuration(c.Sync.Debounce); err != nil || d <= 0 {
		return fmt.Errorf("invalid sync debounce %q", c.Sync.Debounce)
	}

	switch c.Session.Kind {
	case "authenticated", "shared":
		if c.Session.UserID == "" {
			return fmt.Errorf("session kind %q requires a user id", c.Session.Kind)
		}
	case "anonymous":
	default:
		return fmt.Errorf("invalid session kind %q (must be authenticated, anonymous or shared)", c.Session.Kind)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	return nil
}

// GetDebounce returns the parsed sync debounce.
func (c *Config) GetDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Sync.Debounce)
}

// GetRefreshInterval returns the parsed catalog refresh interval.
func (c *Config) GetRefreshInterval() (time.Duration, error) {
	return time.ParseDuration(c.Catalog.RefreshInterval)
}
