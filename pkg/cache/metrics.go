package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhistory_cache_hits_total",
			Help: "Total number of order-history cache hits",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderhistory_cache_misses_total",
			Help: "Total number of order-history cache misses",
		},
	)

	// CacheInvalidations tracks driver-scoped invalidations
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderhistory_cache_invalidations_total",
			Help: "Total number of driver-scoped cache invalidations",
		},
	)

	// CacheErrors tracks cache backend operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderhistory_cache_errors_total",
			Help: "Total number of cache backend operation errors",
		},
		[]string{"operation"}, // "get", "put", "invalidate"
	)

	// CacheEntries tracks the current number of live memory-tier entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderhistory_cache_entries",
			Help: "Current number of entries in the memory cache tier",
		},
	)
)
