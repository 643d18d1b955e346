package cache

import (
	"testing"
	"time"
)

func TestEntry_ExpiredAt(t *testing.T) {
	base := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	entry := &Entry{CachedAt: base, ExpiresAt: base.Add(60 * time.Second)}

	if entry.ExpiredAt(base.Add(30 * time.Second)) {
		t.Error("entry expired at t=30s with 60s TTL")
	}
	if !entry.ExpiredAt(base.Add(60 * time.Second)) {
		t.Error("entry still visible exactly at its expiry instant")
	}
	if !entry.ExpiredAt(base.Add(61 * time.Second)) {
		t.Error("entry still visible at t=61s with 60s TTL")
	}
}

func TestEntry_TTL(t *testing.T) {
	entry := &Entry{ExpiresAt: time.Now().Add(5 * time.Minute)}
	ttl := entry.TTL()
	if ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("TTL = %v, want ~5m", ttl)
	}

	expired := &Entry{ExpiresAt: time.Now().Add(-time.Minute)}
	if expired.TTL() != 0 {
		t.Errorf("expired entry TTL = %v, want 0", expired.TTL())
	}
}
