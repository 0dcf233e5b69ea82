package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `env:"PORT" envDefault:"3000"`

	// DatabasePath is the SQLite database file path.
	DatabasePath string `env:"BLURB_DB_PATH" envDefault:"blurb.db"`

	// TokenSecret is the HMAC key used to sign auth tokens.
	TokenSecret string `env:"BLURB_TOKEN_SECRET,required"`

	// TokenTTL is how long an issued auth token remains valid.
	TokenTTL time.Duration `env:"BLURB_TOKEN_TTL" envDefault:"24h"`

	// BcryptCost is the bcrypt work factor for credential hashing.
	BcryptCost int `env:"BLURB_BCRYPT_COST" envDefault:"10"`

	// StoryTTL is how long a story remains visible after creation.
	StoryTTL time.Duration `env:"BLURB_STORY_TTL" envDefault:"24h"`

	// SweepInterval is how often expired stories are physically removed.
	SweepInterval time.Duration `env:"BLURB_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
