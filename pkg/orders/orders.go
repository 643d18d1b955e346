// Package orders defines the order-history record model and the narrow
// interface to the remote store that serves it.
package orders

import "time"

// Order is one delivery record as seen by the history views.
type Order struct {
	ID             string     `json:"id"`
	DriverID       string     `json:"driver_id"`
	Status         string     `json:"status"`
	PickupAddress  string     `json:"pickup_address"`
	DropoffAddress string     `json:"dropoff_address"`
	AmountCents    int64      `json:"amount_cents"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// EffectiveTime is the timestamp the history ordering is built on: the
// completion time when the order completed, the creation time otherwise.
func (o Order) EffectiveTime() time.Time {
	if o.CompletedAt != nil {
		return *o.CompletedAt
	}
	return o.CreatedAt
}

// Direction selects which side of a cursor a page request addresses.
type Direction string

const (
	// DirectionNext requests records strictly after the cursor in the
	// (timestamp DESC, id DESC) total order, i.e. older records.
	DirectionNext Direction = "next"

	// DirectionPrev requests records strictly before the cursor, i.e. newer
	// records.
	DirectionPrev Direction = "prev"
)

// AggregateStats is the structured result of a summary query. Known fields
// are enumerated; Extra carries genuinely dynamic analytic values keyed by
// stat name.
type AggregateStats struct {
	TotalOrders      int64              `json:"total_orders"`
	TotalAmountCents int64              `json:"total_amount_cents"`
	AvgAmountCents   float64            `json:"avg_amount_cents"`
	Extra            map[string]float64 `json:"extra,omitempty"`
}
