package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/orders")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheTTL != 60*time.Second {
		t.Errorf("CacheTTL = %v, want 60s", cfg.CacheTTL)
	}
	if cfg.CacheMemorySize != 512 {
		t.Errorf("CacheMemorySize = %d, want 512", cfg.CacheMemorySize)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty", cfg.KafkaBrokers)
	}
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when POSTGRES_DSN is missing")
	}
}

func TestLoad_BrokerList(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/orders")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/orders")
	t.Setenv("CACHE_TTL", "0s")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero CACHE_TTL")
	}
}
