// Package cache provides the driver-scoped, TTL-bound result cache for
// order-history pages, counts, and summaries.
//
// The cache is tiered: a small in-memory LRU sits in front of an optional
// Redis backend. Entries are immutable once written; a new fetch always
// replaces the whole entry, so partial writes are never visible. Expiry is
// checked lazily at read time, making an expired entry indistinguishable
// from a miss without any background sweep.
//
// # Basic Usage
//
//	store, err := cache.NewTiered(cache.Config{
//		MemorySize: 512,
//		Redis:      redisClient, // nil for memory-only
//	})
//
//	key := cache.Key{DriverID: "driver-1", Kind: cache.KindPage, FilterKey: f.Key(), Page: 1}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrMiss) {
//		// fetch remotely, then:
//		_ = store.Put(ctx, key, data, 60*time.Second)
//	}
//
// # Invalidation
//
// All keys are namespaced by driver id. InvalidateDriver removes every entry
// belonging to one driver in both tiers and never touches another driver's
// entries. It is called after any mutation that changes the underlying
// record set (status update, explicit refresh).
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - orderhistory_cache_hits_total{layer} - hits by tier (memory, redis)
//   - orderhistory_cache_misses_total - misses across the whole store
//   - orderhistory_cache_invalidations_total - driver-scoped invalidations
//   - orderhistory_cache_errors_total{operation} - backend operation errors
package cache
