// Package filter defines the immutable query filter used as both cache key
// material and remote-query parameters for order-history lookups.
package filter

import (
	"fmt"
	"strings"
	"time"
)

// Filter describes one order-history query: an optional date window, a page
// size, an offset for offset-mode pagination, and a sort direction.
//
// A Filter is a value object. It is never mutated after construction; any
// change produces a new Filter via the With* methods.
type Filter struct {
	// StartDate is the inclusive lower bound of the date window (nil = open).
	StartDate *time.Time

	// EndDate is the inclusive upper bound of the date window (nil = open).
	EndDate *time.Time

	// Limit is the page size. Must be > 0.
	Limit int

	// Offset is the number of records to skip in offset mode. Must be >= 0.
	Offset int

	// SortBy names the sort column. Only "date" is meaningful today; the
	// field participates in key identity so differently sorted views never
	// share cache entries.
	SortBy string

	// Ascending reverses the default newest-first ordering when true.
	Ascending bool
}

// DefaultLimit is the page size used when a caller does not specify one.
const DefaultLimit = 20

// New creates a validated Filter.
func New(start, end *time.Time, limit, offset int) (Filter, error) {
	if limit <= 0 {
		return Filter{}, fmt.Errorf("filter limit must be > 0 (got %d)", limit)
	}
	if offset < 0 {
		return Filter{}, fmt.Errorf("filter offset must be >= 0 (got %d)", offset)
	}
	return Filter{
		StartDate: start,
		EndDate:   end,
		Limit:     limit,
		Offset:    offset,
		SortBy:    "date",
	}, nil
}

// WithOffset returns a copy of f positioned at the given offset.
func (f Filter) WithOffset(offset int) Filter {
	f.Offset = offset
	return f
}

// WithLimit returns a copy of f with the given page size.
func (f Filter) WithLimit(limit int) Filter {
	f.Limit = limit
	return f
}

// Equal reports whether two filters describe the same query.
func (f Filter) Equal(other Filter) bool {
	return f.Key() == other.Key()
}

// Key generates a deterministic string identity for the filter.
// Format: start=<RFC3339|->:end=<RFC3339|->:limit=N:offset=N:sort=<col>:asc=<bool>
//
// The key is embedded into every cache key together with the driver id, so
// two filters with equal keys always address the same cache entries.
func (f Filter) Key() string {
	parts := []string{
		"start=" + formatBound(f.StartDate),
		"end=" + formatBound(f.EndDate),
		fmt.Sprintf("limit=%d", f.Limit),
		fmt.Sprintf("offset=%d", f.Offset),
		"sort=" + f.SortBy,
		fmt.Sprintf("asc=%t", f.Ascending),
	}
	return strings.Join(parts, ":")
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
