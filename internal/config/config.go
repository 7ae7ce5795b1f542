// Package config loads the tracker's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk configuration.
type Config struct {
	DBPath        string   `toml:"db_path"`         // SQLite file; empty uses ~/.sdtrack/tracker.db
	KnownNames    []string `toml:"known_names"`     // account names that identify the user
	Concurrency   int      `toml:"concurrency"`     // fetch workers
	Pacing        string   `toml:"pacing"`          // spacing between request starts (e.g. "500ms")
	Timeout       string   `toml:"timeout"`         // per-fetch timeout (e.g. "30s")
	LogLevel      string   `toml:"log_level"`       // debug, info, warn, error
	ReplayBaseURL string   `toml:"replay_base_url"` // replay server
	SeriesWindow  string   `toml:"series_window"`   // max gap inside one series; "0" disables
	TopLeads      int      `toml:"top_leads"`       // rows per lead-pair table
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:   3,
		Pacing:        "250ms",
		Timeout:       "30s",
		LogLevel:      "info",
		ReplayBaseURL: "https://replay.pokemonshowdown.com",
		SeriesWindow:  "0",
		TopLeads:      5,
	}
}

// Dir returns ~/.sdtrack, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".sdtrack")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns ~/.sdtrack/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path on top of the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks value ranges and duration syntax.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative: %d", c.Concurrency)
	}
	if c.TopLeads < 0 {
		return fmt.Errorf("top_leads cannot be negative: %d", c.TopLeads)
	}
	for name, v := range map[string]string{
		"pacing":        c.Pacing,
		"timeout":       c.Timeout,
		"series_window": c.SeriesWindow,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// PacingDuration returns the pacing interval; 0 means unpaced.
func (c *Config) PacingDuration() time.Duration {
	d, _ := parseDuration(c.Pacing)
	return d
}

// TimeoutDuration returns the per-fetch timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

// SeriesWindowDuration returns the series window; 0 disables it.
func (c *Config) SeriesWindowDuration() time.Duration {
	d, _ := parseDuration(c.SeriesWindow)
	return d
}

// Level maps log_level to a slog level. Empty means info.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	s := strings.TrimSpace(c.LogLevel)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return lvl, nil
}

// ResolveDBPath returns DBPath, or tracker.db in the config directory.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tracker.db"), nil
}

// parseDuration accepts Go duration strings; empty and "0" mean zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
