package orders

import (
	"context"
	"errors"
	"time"

	"github.com/courierops/orderhistory/pkg/filter"
)

// Errors surfaced by RemoteSource implementations.
var (
	// ErrDriverNotFound indicates the driver does not exist in the backing
	// store. Callers treat it as an empty, terminal result, not a failure.
	ErrDriverNotFound = errors.New("driver not found")
)

// RemoteSource is the narrow interface to the backing order store. It is the
// only remote dependency of the caching/pagination core; query construction
// and transport live behind it.
//
// All calls may fail transiently. Implementations return ErrDriverNotFound
// for unknown drivers and ordinary errors for everything else.
type RemoteSource interface {
	// QueryPage fetches one page in offset mode, ordered by the
	// (timestamp DESC, id DESC) total order (reversed when f.Ascending).
	QueryPage(ctx context.Context, driverID string, f filter.Filter) ([]Order, error)

	// QueryCursorPage fetches one page in cursor mode. A zero cursorTS means
	// "from the beginning". direction selects which side of the cursor the
	// page lies on; records equal to the cursor are never returned.
	QueryCursorPage(ctx context.Context, driverID string, f filter.Filter,
		cursorTS time.Time, cursorID string, direction Direction) ([]Order, error)

	// CountRecords returns the number of records matching the filter window.
	CountRecords(ctx context.Context, driverID string, f filter.Filter) (int64, error)

	// QueryAggregateStats returns summary statistics for the filter window.
	QueryAggregateStats(ctx context.Context, driverID string, f filter.Filter) (AggregateStats, error)
}
