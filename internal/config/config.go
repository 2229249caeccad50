package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values, populated from
// environment variables.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// WebAppURL is the front-end origin allowed for cross-origin requests.
	WebAppURL string `envconfig:"WEBAPP_URL" default:"https://lyvo-shop.vercel.app"`

	// BotToken is the shared secret for Mini App signature verification.
	// It must never be logged or echoed in responses.
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	HttpServer ServerConfig
	Store      StoreConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// StoreConfig selects and configures the catalog backend.
type StoreConfig struct {
	// Backend is either "postgres" or "memory".
	Backend string `envconfig:"STORE_BACKEND" default:"postgres"`

	// DatabaseURL is the lib/pq connection string, required for postgres.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Snapshot is the JSON catalog file path for the memory backend.
	Snapshot string `envconfig:"CATALOG_SNAPSHOT"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}

	switch cfg.Store.Backend {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q (want postgres or memory)", cfg.Store.Backend)
	}

	return &cfg, nil
}
