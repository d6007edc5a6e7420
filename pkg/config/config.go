// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server settings
type Config struct {
	Debug bool   `env:"CLOCK_DEBUG" envDefault:"false"`
	Port  string `env:"PORT"        envDefault:"8080"`

	// APIKeys guards the websocket endpoint; empty disables authentication
	APIKeys        []string `env:"API_KEYS"        envSeparator:","`
	FrontendOrigin string   `env:"FRONTEND_ORIGIN"`

	TickPeriod    time.Duration `env:"CLOCK_TICK_PERIOD"    envDefault:"100ms"`
	PresetsFile   string        `env:"CLOCK_PRESETS_FILE"`
	DefaultPreset string        `env:"CLOCK_DEFAULT_PRESET" envDefault:"15 min | 5 sec"`
	PauseFeedback int           `env:"CLOCK_PAUSE_FEEDBACK" envDefault:"0"`
	Sound         bool          `env:"CLOCK_SOUND"          envDefault:"true"`

	// DatabasePath selects the SQLite archive; empty keeps finished games in memory
	DatabasePath string `env:"CLOCK_DB_PATH"`
}

// Load reads an optional .env file and parses the environment
func Load(dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values env parsing cannot
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %s", c.TickPeriod)
	}
	if c.PauseFeedback < 0 || c.PauseFeedback > 2 {
		return fmt.Errorf("pause feedback must be 0, 1 or 2, got %d", c.PauseFeedback)
	}
	return nil
}
