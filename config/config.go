// Package config loads service settings from the environment (and .env).
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port              string        `env:"PORT"               envDefault:"5200"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	Store             string        `env:"STORE"              envDefault:"postgres"`
	GatewayToken      string        `env:"GATEWAY_TOKEN"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"    envDefault:"http://localhost:3000" envSeparator:","`
	RulesFile         string        `env:"RULES_FILE"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
	SeedCatalog       bool          `env:"SEED_CATALOG"       envDefault:"false"`

	// Profile mirroring is off unless PROFILE_SYNC_URL is set
	ProfileSyncURL      string        `env:"PROFILE_SYNC_URL"`
	ProfileSyncPath     string        `env:"PROFILE_SYNC_PATH"     envDefault:"/api/v1/public/profiles"`
	ProfileSyncToken    string        `env:"PROFILE_SYNC_TOKEN"`
	ProfileSyncInterval time.Duration `env:"PROFILE_SYNC_INTERVAL" envDefault:"1m"`
}

// Load reads .env when present, then binds and validates the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse binds the current environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.GatewayToken == "" {
		return errors.New("GATEWAY_TOKEN is not set, service cannot authenticate Gateway")
	}
	if c.ProfileSyncURL != "" && c.ProfileSyncInterval <= 0 {
		return fmt.Errorf("PROFILE_SYNC_INTERVAL must be positive, got %s", c.ProfileSyncInterval)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must not be negative, got %s", c.ReconcileInterval)
	}
	return nil
}
