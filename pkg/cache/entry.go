package cache

import "time"

// Entry is one cached value. Entries are immutable once written; a fresh
// fetch produces a new Entry rather than mutating an existing one in place.
type Entry struct {
	// Data is the serialized cached value (a page result, count, or summary).
	Data []byte `json:"data"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`

	// ExpiresAt is when the entry becomes stale. An entry is visible only
	// while now < ExpiresAt.
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the entry is stale at the given instant.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// IsExpired reports whether the entry is stale now.
func (e *Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
