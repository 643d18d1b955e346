package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidEntry indicates a cache entry that could not be decoded.
var ErrInvalidEntry = errors.New("invalid cache entry")

// Redis is the shared cache tier backed by a Redis instance. Redis expires
// entries on its own via SET TTLs; the stored ExpiresAt is still checked at
// read time so clock skew between writers never surfaces a stale entry.
type Redis struct {
	client *redis.Client
}

// NewRedis creates the Redis tier.
func NewRedis(client *redis.Client) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{client: client}
}

// Get retrieves the entry for key. Returns ErrMiss if the key does not exist
// or the entry is expired.
func (r *Redis) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := r.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = r.client.Del(ctx, key.String()).Err()
		return nil, ErrMiss
	}

	return &entry, nil
}

// Put stores data under key for ttl, overwriting any existing entry.
func (r *Redis) Put(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	payload, err := json.Marshal(Entry{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := r.client.Set(ctx, key.String(), payload, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// InvalidateDriver removes every entry belonging to driverID by scanning the
// driver's key prefix.
func (r *Redis) InvalidateDriver(ctx context.Context, driverID string) error {
	pattern := DriverPrefix(driverID) + "*"

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				CacheErrors.WithLabelValues("invalidate").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			CacheErrors.WithLabelValues("invalidate").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}
