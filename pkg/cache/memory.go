package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrMiss indicates the requested key was not found or had expired.
var ErrMiss = errors.New("cache miss")

// Memory is the in-process cache tier: an LRU of immutable entries with
// lazy per-entry TTL expiry. Safe for concurrent use.
type Memory struct {
	lru    *lru.Cache[string, Entry]
	now    func() time.Time
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemory creates a memory tier holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c, now: time.Now}, nil
}

// Get returns the entry for key, or ErrMiss on miss or expiry. Expiry is
// checked at read time; expired entries are evicted on the spot.
func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	entry, ok := m.lru.Get(key.String())
	if !ok {
		m.misses.Add(1)
		return nil, ErrMiss
	}
	if entry.ExpiredAt(m.now()) {
		m.lru.Remove(key.String())
		m.misses.Add(1)
		return nil, ErrMiss
	}
	m.hits.Add(1)
	return &entry, nil
}

// Put stores data under key for ttl, overwriting any existing entry.
func (m *Memory) Put(_ context.Context, key Key, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now()
	m.lru.Add(key.String(), Entry{
		Data:      data,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	return nil
}

// InvalidateDriver removes every entry belonging to driverID.
func (m *Memory) InvalidateDriver(_ context.Context, driverID string) error {
	prefix := DriverPrefix(driverID)
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

// Stats returns hit/miss counters (monotonic since construction) and the
// current entry count.
func (m *Memory) Stats() Stats {
	return Stats{
		HitCount:   m.hits.Load(),
		MissCount:  m.misses.Load(),
		EntryCount: m.lru.Len(),
	}
}
