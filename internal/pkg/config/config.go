package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	TokenTTL time.Duration `env:"TOKEN_TTL, default=1h"`
	CacheTTL time.Duration `env:"CACHE_TTL, default=0s"`

	StoreDriver string `env:"STORE_DRIVER, default=mongo"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Events EventsConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=product_catalog"`
}

// RedisConfig is optional: an empty Addr disables sale idempotency.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// EventsConfig is optional: an empty RabbitMQURL disables event publishing.
type EventsConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Queue       string `env:"RABBITMQ_QUEUE, default=catalog.events"`
	Workers     int    `env:"EVENT_WORKERS,  default=4"`
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	cfg, err := load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.StoreDriver != StoreMongo && cfg.StoreDriver != StoreMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, cfg.StoreDriver)
	}
	return &cfg, nil
}
