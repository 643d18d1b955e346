// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/courierops/orderhistory/pkg/logging"
)

// Config holds the history service configuration, populated from environment
// variables.
type Config struct {
	// HTTP listen port for the proxy.
	Port string `env:"PORT" envDefault:"8080"`

	// PostgresDSN is the order store connection string.
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`

	// RedisAddr enables the shared cache tier when set.
	RedisAddr string `env:"REDIS_ADDR"`

	// CacheTTL bounds how long page results, counts, and summaries stay
	// valid in cache.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	// CacheMemorySize is the memory-tier LRU capacity.
	CacheMemorySize int `env:"CACHE_MEMORY_SIZE" envDefault:"512"`

	// PerfMaxRecords bounds performance-sample retention.
	PerfMaxRecords int `env:"PERF_MAX_RECORDS" envDefault:"1024"`

	// KafkaBrokers and KafkaTopic configure the order-status invalidation
	// consumer; the consumer is disabled when brokers are empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"order-status-updates"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"orderhistory-invalidator"`

	// Logging.
	LogLevel  logging.LogLevel `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool             `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be positive (got %s)", cfg.CacheTTL)
	}
	return cfg, nil
}
