package cache

import (
	"fmt"
	"strings"
)

// Entry kinds stored by the history core.
const (
	// KindPage marks a cached page of order results.
	KindPage = "page"

	// KindCount marks a cached record count.
	KindCount = "count"

	// KindStats marks a cached aggregate summary.
	KindStats = "stats"
)

// Key identifies a cached value. Every key carries the driver id so that
// invalidating one driver can never touch another driver's entries.
type Key struct {
	// DriverID namespaces the entry.
	DriverID string

	// Kind is one of KindPage, KindCount, KindStats.
	Kind string

	// FilterKey is the deterministic filter identity (filter.Filter.Key()).
	FilterKey string

	// Page is the 1-based page number. Only meaningful for KindPage; zero
	// for counts and summaries.
	Page int
}

// String generates the deterministic cache key string.
// Format: orders:driver:<id>:<kind>:<filter-key>[:p<page>]
//
// Example:
//
//	orders:driver:d-42:page:start=2024-01-01T00:00:00Z:end=-:limit=20:offset=0:sort=date:asc=false:p1
func (k Key) String() string {
	parts := []string{"orders", "driver", k.DriverID, k.Kind, k.FilterKey}
	if k.Page > 0 {
		parts = append(parts, fmt.Sprintf("p%d", k.Page))
	}
	return strings.Join(parts, ":")
}

// DriverPrefix is the key prefix shared by every entry of one driver. Both
// tiers use it to implement driver-scoped invalidation.
func DriverPrefix(driverID string) string {
	return "orders:driver:" + driverID + ":"
}
