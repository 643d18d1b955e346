// Package metrics provides the central Prometheus registry reference for the
// order-history core. Metrics are defined in their owning packages (cache,
// perf) to maintain modularity and avoid circular dependencies.
//
// This package documents all available metrics in one place.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the history core.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - orderhistory_cache_hits_total{layer} (Counter): Cache hits by tier (memory, redis)
//   - orderhistory_cache_misses_total (Counter): Cache misses
//   - orderhistory_cache_invalidations_total (Counter): Driver-scoped invalidations
//   - orderhistory_cache_errors_total{operation} (Counter): Backend operation errors
//   - orderhistory_cache_entries (Gauge): Live memory-tier entries
//
// Query Metrics (pkg/perf):
//   - orderhistory_query_duration_seconds{label} (Histogram): Query duration by label
//   - orderhistory_query_lookups_total{label, result} (Counter): Lookups by label and hit/miss
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(orderhistory_cache_hits_total[5m])) /
//   (sum(rate(orderhistory_cache_hits_total[5m])) + sum(rate(orderhistory_cache_misses_total[5m])))
//
//   # P95 Query Latency per View
//   histogram_quantile(0.95, rate(orderhistory_query_duration_seconds_bucket[5m]))
//
//   # Invalidation Rate
//   rate(orderhistory_cache_invalidations_total[5m])
