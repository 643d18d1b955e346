// Package cursor implements the opaque pagination cursor used for stable
// forward/backward paging of order history under concurrent inserts.
//
// A cursor is the pair (timestamp, record id) serialized as
// "<RFC3339 timestamp>|<id>". The total order over records is
// (timestamp DESC, id DESC); two records with the same timestamp are ordered
// by id so page boundaries are deterministic and no row is duplicated or
// skipped across pages.
package cursor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/courierops/orderhistory/pkg/orders"
)

// ErrMalformedCursor indicates a cursor string that cannot be decoded.
// Callers must treat this as "start from the beginning", never as fatal.
var ErrMalformedCursor = errors.New("malformed cursor")

const separator = "|"

// Cursor is a decoded pagination boundary.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Encode derives a cursor string from an order. The completion timestamp is
// preferred; records that never completed fall back to their creation
// timestamp, so every record has a cursor value.
func Encode(o orders.Order) string {
	ts := o.CreatedAt
	if o.CompletedAt != nil {
		ts = *o.CompletedAt
	}
	return ts.UTC().Format(time.RFC3339) + separator + o.ID
}

// Decode parses a cursor string back into its (timestamp, id) pair.
// Returns ErrMalformedCursor when the separator is missing or the timestamp
// segment does not parse.
func Decode(s string) (Cursor, error) {
	ts, id, ok := strings.Cut(s, separator)
	if !ok {
		return Cursor{}, fmt.Errorf("%w: missing separator in %q", ErrMalformedCursor, s)
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp in %q: %v", ErrMalformedCursor, s, err)
	}
	return Cursor{Timestamp: parsed, ID: id}, nil
}

// String re-serializes a decoded cursor.
func (c Cursor) String() string {
	return c.Timestamp.UTC().Format(time.RFC3339) + separator + c.ID
}

// Before reports whether c sorts strictly after other in the
// (timestamp DESC, id DESC) total order, i.e. c addresses older records.
func (c Cursor) Before(other Cursor) bool {
	if !c.Timestamp.Equal(other.Timestamp) {
		return c.Timestamp.Before(other.Timestamp)
	}
	return c.ID < other.ID
}
