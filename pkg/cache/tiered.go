package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/courierops/orderhistory/pkg/logging"
)

// Store is the cache surface the loading controller depends on.
type Store interface {
	// Get returns the entry for key, or ErrMiss on miss/expiry.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put overwrites the entry for key; never a partial update.
	Put(ctx context.Context, key Key, data []byte, ttl time.Duration) error

	// InvalidateDriver removes all entries for one driver.
	InvalidateDriver(ctx context.Context, driverID string) error

	// Stats returns hit/miss counters and the live entry count.
	Stats() Stats
}

// Stats are cache observability counters. HitCount and MissCount are
// monotonic since process start and are never reset implicitly.
type Stats struct {
	HitCount   uint64 `json:"hit_count"`
	MissCount  uint64 `json:"miss_count"`
	EntryCount int    `json:"entry_count"`
}

// Config holds tiered cache configuration.
type Config struct {
	// MemorySize is the memory-tier LRU capacity.
	MemorySize int

	// Redis enables the shared tier when non-nil.
	Redis *redis.Client

	// Logger defaults to a component-tagged logger when nil.
	Logger *zerolog.Logger
}

// DefaultMemorySize bounds the memory tier when no size is configured.
const DefaultMemorySize = 512

// Tiered is the production Store: a memory LRU in front of an optional Redis
// backend. A Redis failure is treated as a forced miss, never as an
// operation failure, so the history core degrades to remote fetches rather
// than erroring out.
type Tiered struct {
	memory *Memory
	redis  *Redis
	logger zerolog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewTiered creates the tiered store.
func NewTiered(cfg Config) (*Tiered, error) {
	size := cfg.MemorySize
	if size <= 0 {
		size = DefaultMemorySize
	}
	memory, err := NewMemory(size)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("cache")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	t := &Tiered{memory: memory, logger: logger}
	if cfg.Redis != nil {
		t.redis = NewRedis(cfg.Redis)
	}
	return t, nil
}

// Get checks the memory tier first, then Redis. A Redis hit is promoted into
// the memory tier with its remaining TTL.
func (t *Tiered) Get(ctx context.Context, key Key) (*Entry, error) {
	if entry, err := t.memory.Get(ctx, key); err == nil {
		t.hits.Add(1)
		CacheHits.WithLabelValues("memory").Inc()
		return entry, nil
	}

	if t.redis == nil {
		return t.miss()
	}

	entry, err := t.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			// Degraded mode: an unreachable backend is a forced miss, not a
			// failed lookup.
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Redis tier unavailable, treating as miss")
		}
		return t.miss()
	}

	if ttl := entry.TTL(); ttl > 0 {
		_ = t.memory.Put(ctx, key, entry.Data, ttl)
	}
	t.hits.Add(1)
	CacheHits.WithLabelValues("redis").Inc()
	return entry, nil
}

func (t *Tiered) miss() (*Entry, error) {
	t.misses.Add(1)
	CacheMisses.Inc()
	return nil, ErrMiss
}

// Put writes both tiers. The memory tier is authoritative; a Redis write
// failure is logged and absorbed.
func (t *Tiered) Put(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if err := t.memory.Put(ctx, key, data, ttl); err != nil {
		return err
	}
	CacheEntries.Set(float64(t.memory.lru.Len()))

	if t.redis != nil {
		if err := t.redis.Put(ctx, key, data, ttl); err != nil {
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Redis tier write failed")
		}
	}
	return nil
}

// InvalidateDriver removes the driver's entries from both tiers. A Redis
// failure is returned so the caller can log it, but the memory tier is
// always cleared first.
func (t *Tiered) InvalidateDriver(ctx context.Context, driverID string) error {
	CacheInvalidations.Inc()
	_ = t.memory.InvalidateDriver(ctx, driverID)
	CacheEntries.Set(float64(t.memory.lru.Len()))

	if t.redis != nil {
		if err := t.redis.InvalidateDriver(ctx, driverID); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns lookup counters for the whole store and the memory-tier
// entry count.
func (t *Tiered) Stats() Stats {
	return Stats{
		HitCount:   t.hits.Load(),
		MissCount:  t.misses.Load(),
		EntryCount: t.memory.lru.Len(),
	}
}
