// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/robalobadob/clusters/internal/puzzle"
)

// Config holds all server configuration, read from the environment.
type Config struct {
	Port     string `env:"PORT" envDefault:"5175"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/app.db"`

	// Empty means the embedded puzzle pack.
	PuzzlesDir string `env:"PUZZLES_DIR"`

	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"clusters_token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Environment    string `env:"NODE_ENV" envDefault:"development"`

	DailySalt string `env:"DAILY_SALT" envDefault:"local_dev_salt"`

	FeedbackValid   time.Duration `env:"FEEDBACK_VALID" envDefault:"300ms"`
	FeedbackInvalid time.Duration `env:"FEEDBACK_INVALID" envDefault:"500ms"`
	DefaultTries    string        `env:"DEFAULT_TRIES" envDefault:"4"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"6h"`
}

// Load reads an optional .env file, then parses and validates the environment.
func Load(dotenv ...string) (*Config, error) {
	_ = godotenv.Load(dotenv...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that required fields are usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.JWTExpiresDays <= 0 {
		return fmt.Errorf("JWT_EXPIRES_DAYS must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.FeedbackValid < 0 || c.FeedbackInvalid < 0 {
		return fmt.Errorf("feedback delays cannot be negative")
	}
	if c.IsProduction() && c.JWTSecret == "dev_secret_change_me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction reports whether cookies must be Secure/SameSite=None.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Tries is the tries limit for sessions that do not specify one.
func (c *Config) Tries() puzzle.Tries { return puzzle.ParseTries(c.DefaultTries) }

// TokenTTL is the lifetime of issued auth tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}
