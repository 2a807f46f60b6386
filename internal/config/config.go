// Package config loads and validates the application configuration from a
// TOML file, with environment overrides from an optional .env file and live
// reload of player preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Library  LibraryConfig  `toml:"library"`
	Engine   EngineConfig   `toml:"engine"`
	Player   PlayerConfig   `toml:"player"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig contains music library configuration
type LibraryConfig struct {
	Path             string   `toml:"path"`
	SupportedFormats []string `toml:"supported_formats"`
	ImportOnStartup  bool     `toml:"import_on_startup"`
}

// EngineConfig describes how to reach the external media engine daemon.
type EngineConfig struct {
	URL              string `toml:"url"`
	StatusIntervalMs int    `toml:"status_interval_ms"`
}

// PlayerConfig contains playback preferences and loop cadences.
type PlayerConfig struct {
	Speed               float64 `toml:"speed"`
	ProgressIntervalMs  int     `toml:"progress_interval_ms"`
	ReconcileIntervalMs int     `toml:"reconcile_interval_ms"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StatusInterval returns the engine status poll cadence as a Duration.
func (e *EngineConfig) StatusInterval() time.Duration {
	return time.Duration(e.StatusIntervalMs) * time.Millisecond
}

// ProgressInterval returns the progress clock cadence as a Duration.
func (p *PlayerConfig) ProgressInterval() time.Duration {
	return time.Duration(p.ProgressIntervalMs) * time.Millisecond
}

// ReconcileInterval returns the reconciliation loop cadence as a Duration.
func (p *PlayerConfig) ReconcileInterval() time.Duration {
	return time.Duration(p.ReconcileIntervalMs) * time.Millisecond
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "./resona.db",
		},
		Library: LibraryConfig{
			Path:             "./music",
			SupportedFormats: []string{".mp3", ".flac", ".wav"},
			ImportOnStartup:  true,
		},
		Engine: EngineConfig{
			URL:              "http://127.0.0.1:6600",
			StatusIntervalMs: 250,
		},
		Player: PlayerConfig{
			Speed:               1.0,
			ProgressIntervalMs:  100,
			ReconcileIntervalMs: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with defaults
// when missing. A .env file in the working directory may override the engine
// URL (RESONA_ENGINE_URL) and database path (RESONA_DB_PATH).
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// .env overrides, if present. Absence is fine.
	_ = godotenv.Load()
	if url := os.Getenv("RESONA_ENGINE_URL"); url != "" {
		cfg.Engine.URL = url
	}
	if path := os.Getenv("RESONA_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Resona Player Configuration
# Playback preferences in [player] are applied live while the player runs.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Library.Path == "" {
		return fmt.Errorf("music library path cannot be empty")
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	if c.Engine.URL == "" {
		return fmt.Errorf("engine URL cannot be empty")
	}
	if c.Player.Speed <= 0 || c.Player.Speed > 4 {
		return fmt.Errorf("playback speed must be in (0, 4], got %v", c.Player.Speed)
	}
	if c.Player.ProgressIntervalMs <= 0 {
		return fmt.Errorf("progress interval must be positive")
	}
	if c.Player.ReconcileIntervalMs <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}
