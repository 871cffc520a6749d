// Package config handles configuration for the circulation CLI: defaults,
// an optional .env overlay, environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// Environment variable names.
const (
	EnvDatabasePath = "LIBRARY_DB"
	EnvLogLevel     = "LIBRARY_LOG_LEVEL"
	EnvLogFormat    = "LIBRARY_LOG_FORMAT"
)

// Config holds runtime settings.
//
// Fields:
//   - DatabasePath: SQLite file holding the circulation store.
//   - LogLevel: zap level name (debug, info, warn, error).
//   - LogFormat: "console" or "json".
type Config struct {
	DatabasePath string
	LogLevel     string
	LogFormat    string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "library.db"
	c.LogLevel = "info"
	c.LogFormat = "console"
}

// Load applies defaults, then envFile (via godotenv, never overriding
// variables already set in the process), then the LIBRARY_* variables.
// Flags are layered on top by the caller.
func Load(envFile string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !(errors.Is(err, fs.ErrNotExist) && envFile == DefaultEnvFile) {
				return nil, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabasePath); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
}
