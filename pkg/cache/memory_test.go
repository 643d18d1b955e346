package cache

import (
	"context"
	"testing"
	"time"
)

func pageKey(driverID string, page int) Key {
	return Key{DriverID: driverID, Kind: KindPage, FilterKey: "fk", Page: page}
}

func TestMemory_PutAndGet(t *testing.T) {
	m, err := NewMemory(16)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	ctx := context.Background()

	key := pageKey("d-1", 1)
	if err := m.Put(ctx, key, []byte(`{"items":[]}`), time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != `{"items":[]}` {
		t.Errorf("Data = %s", entry.Data)
	}
}

func TestMemory_Miss(t *testing.T) {
	m, _ := NewMemory(16)
	if _, err := m.Get(context.Background(), pageKey("d-1", 1)); err != ErrMiss {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemory_LazyExpiry(t *testing.T) {
	m, _ := NewMemory(16)
	ctx := context.Background()

	base := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	key := pageKey("d-1", 1)
	if err := m.Put(ctx, key, []byte("v"), 60*time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// t=30s: still visible.
	now = base.Add(30 * time.Second)
	if _, err := m.Get(ctx, key); err != nil {
		t.Errorf("Get at t=30s failed: %v", err)
	}

	// t=61s: expired, treated as miss and evicted.
	now = base.Add(61 * time.Second)
	if _, err := m.Get(ctx, key); err != ErrMiss {
		t.Errorf("expected ErrMiss at t=61s, got %v", err)
	}
	if m.lru.Len() != 0 {
		t.Errorf("expired entry not evicted, len = %d", m.lru.Len())
	}
}

func TestMemory_PutOverwrites(t *testing.T) {
	m, _ := NewMemory(16)
	ctx := context.Background()
	key := pageKey("d-1", 1)

	_ = m.Put(ctx, key, []byte("old"), time.Minute)
	_ = m.Put(ctx, key, []byte("new"), time.Minute)

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != "new" {
		t.Errorf("Data = %s, want new", entry.Data)
	}
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	m, _ := NewMemory(16)
	ctx := context.Background()
	key := pageKey("d-1", 1)

	_ = m.Put(ctx, key, []byte("v"), 0)
	if _, err := m.Get(ctx, key); err != ErrMiss {
		t.Errorf("zero-TTL entry was stored: %v", err)
	}
}

func TestMemory_InvalidateDriver(t *testing.T) {
	m, _ := NewMemory(16)
	ctx := context.Background()

	_ = m.Put(ctx, pageKey("d-1", 1), []byte("a"), time.Minute)
	_ = m.Put(ctx, pageKey("d-1", 2), []byte("b"), time.Minute)
	_ = m.Put(ctx, pageKey("d-2", 1), []byte("c"), time.Minute)

	if err := m.InvalidateDriver(ctx, "d-1"); err != nil {
		t.Fatalf("InvalidateDriver failed: %v", err)
	}

	if _, err := m.Get(ctx, pageKey("d-1", 1)); err != ErrMiss {
		t.Error("d-1 page 1 survived invalidation")
	}
	if _, err := m.Get(ctx, pageKey("d-1", 2)); err != ErrMiss {
		t.Error("d-1 page 2 survived invalidation")
	}
	// Another driver's entries are untouched.
	if _, err := m.Get(ctx, pageKey("d-2", 1)); err != nil {
		t.Errorf("d-2 entry lost during d-1 invalidation: %v", err)
	}
}

func TestMemory_Stats(t *testing.T) {
	m, _ := NewMemory(16)
	ctx := context.Background()

	_ = m.Put(ctx, pageKey("d-1", 1), []byte("a"), time.Minute)
	_, _ = m.Get(ctx, pageKey("d-1", 1)) // hit
	_, _ = m.Get(ctx, pageKey("d-1", 2)) // miss
	_, _ = m.Get(ctx, pageKey("d-1", 3)) // miss

	stats := m.Stats()
	if stats.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", stats.HitCount)
	}
	if stats.MissCount != 2 {
		t.Errorf("MissCount = %d, want 2", stats.MissCount)
	}
	if stats.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", stats.EntryCount)
	}
}
