// Package testutil provides testing utilities for the order-history core.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/orders"
)

// FakeSource is a configurable in-memory RemoteSource. It serves a fixed,
// ordered record set per driver, tracks call counts, and can be made to fail
// on demand.
type FakeSource struct {
	mu      sync.Mutex
	records map[string][]orders.Order // per driver, already in total order

	// FailCursor / FailOffset make the respective query mode fail.
	FailCursor error
	FailOffset error

	// Delay is added to every call, for latency-sensitive tests.
	Delay time.Duration

	// Call counters, guarded by mu; read them through the accessors so tests
	// can poll while a detached fetch is still running.
	cursorCalls int
	offsetCalls int
	countCalls  int
	statsCalls  int
}

// NewFakeSource creates an empty fake.
func NewFakeSource() *FakeSource {
	return &FakeSource{records: make(map[string][]orders.Order)}
}

// SeedDriver installs a driver's record set in (timestamp DESC, id DESC)
// order, the order the remote store would return.
func (f *FakeSource) SeedDriver(driverID string, records []orders.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[driverID] = records
}

// QueryPage implements offset-mode pagination over the seeded set.
func (f *FakeSource) QueryPage(_ context.Context, driverID string, flt filter.Filter) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsetCalls++
	time.Sleep(f.Delay)
	if f.FailOffset != nil {
		return nil, f.FailOffset
	}
	all, ok := f.records[driverID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrDriverNotFound, driverID)
	}
	windowed := applyWindow(all, flt)
	if flt.Offset >= len(windowed) {
		return nil, nil
	}
	end := flt.Offset + flt.Limit
	if end > len(windowed) {
		end = len(windowed)
	}
	return clone(windowed[flt.Offset:end]), nil
}

// QueryCursorPage implements cursor-mode pagination over the seeded set.
func (f *FakeSource) QueryCursorPage(_ context.Context, driverID string, flt filter.Filter,
	cursorTS time.Time, cursorID string, direction orders.Direction) ([]orders.Order, error) {

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorCalls++
	time.Sleep(f.Delay)
	if f.FailCursor != nil {
		return nil, f.FailCursor
	}
	all, ok := f.records[driverID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrDriverNotFound, driverID)
	}
	windowed := applyWindow(all, flt)

	start := 0
	if !cursorTS.IsZero() {
		// Records strictly after the cursor in (ts DESC, id DESC) order.
		start = len(windowed)
		for i, o := range windowed {
			ts := o.EffectiveTime()
			if ts.Before(cursorTS) || (ts.Equal(cursorTS) && o.ID < cursorID) {
				start = i
				break
			}
		}
		if direction == orders.DirectionPrev {
			// Newer side of the cursor: the tail of records before start.
			lo := start - flt.Limit
			if lo < 0 {
				lo = 0
			}
			return clone(windowed[lo:start]), nil
		}
	}
	end := start + flt.Limit
	if end > len(windowed) {
		end = len(windowed)
	}
	return clone(windowed[start:end]), nil
}

// CountRecords returns the size of the windowed set.
func (f *FakeSource) CountRecords(_ context.Context, driverID string, flt filter.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	all, ok := f.records[driverID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", orders.ErrDriverNotFound, driverID)
	}
	return int64(len(applyWindow(all, flt))), nil
}

// QueryAggregateStats sums the windowed set.
func (f *FakeSource) QueryAggregateStats(_ context.Context, driverID string, flt filter.Filter) (orders.AggregateStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	all, ok := f.records[driverID]
	if !ok {
		return orders.AggregateStats{}, fmt.Errorf("%w: %s", orders.ErrDriverNotFound, driverID)
	}
	windowed := applyWindow(all, flt)
	stats := orders.AggregateStats{TotalOrders: int64(len(windowed))}
	for _, o := range windowed {
		stats.TotalAmountCents += o.AmountCents
	}
	if len(windowed) > 0 {
		stats.AvgAmountCents = float64(stats.TotalAmountCents) / float64(len(windowed))
	}
	return stats, nil
}

// CursorCalls returns how many cursor-mode queries were made.
func (f *FakeSource) CursorCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursorCalls
}

// OffsetCalls returns how many offset-mode queries were made.
func (f *FakeSource) OffsetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offsetCalls
}

// CountCalls returns how many count queries were made.
func (f *FakeSource) CountCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

// StatsCalls returns how many aggregate queries were made.
func (f *FakeSource) StatsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsCalls
}

func applyWindow(all []orders.Order, flt filter.Filter) []orders.Order {
	var out []orders.Order
	for _, o := range all {
		ts := o.EffectiveTime()
		if flt.StartDate != nil && ts.Before(*flt.StartDate) {
			continue
		}
		if flt.EndDate != nil && ts.After(*flt.EndDate) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func clone(in []orders.Order) []orders.Order {
	return append([]orders.Order(nil), in...)
}

// MakeOrders builds n completed orders for a driver, newest first, one
// minute apart starting at base.
func MakeOrders(driverID string, n int, base time.Time) []orders.Order {
	out := make([]orders.Order, n)
	for i := 0; i < n; i++ {
		completed := base.Add(-time.Duration(i) * time.Minute)
		created := completed.Add(-30 * time.Minute)
		out[i] = orders.Order{
			ID:             uuid.NewString(),
			DriverID:       driverID,
			Status:         "completed",
			PickupAddress:  fmt.Sprintf("%d Depot Way", i+1),
			DropoffAddress: fmt.Sprintf("%d Elm St", i+1),
			AmountCents:    1250 + int64(i)*10,
			CreatedAt:      created,
			CompletedAt:    &completed,
		}
	}
	return out
}
