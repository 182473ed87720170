package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/citytour.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:""`

	// Dataset API. An empty base URL disables the dataset source and
	// the loader falls straight through to the built-in tour.
	DatasetBaseURL  string        `env:"DATASET_BASE_URL" envDefault:""`
	DatasetName     string        `env:"DATASET_NAME" envDefault:"landmarks"`
	DatasetCacheTTL time.Duration `env:"DATASET_CACHE_TTL" envDefault:"5m"`

	// Redis backs the dataset read-through cache. Empty disables
	// caching; every load then hits the dataset API directly.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// TransitionDuration is how long a visual landmark swap keeps a
	// session's navigation busy.
	TransitionDuration time.Duration `env:"TRANSITION_DURATION" envDefault:"600ms"`
	// SessionIdleTimeout is how long an untouched session survives
	// before the pruner drops it.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"2h"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@citytour.local"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
