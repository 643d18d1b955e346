package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courierops/orderhistory/pkg/filter"
)

// effectiveTS is the SQL expression for the ordering timestamp: completion
// time when present, creation time otherwise. Must agree with
// Order.EffectiveTime and with the cursor codec.
const effectiveTS = "COALESCE(completed_at, created_at)"

const orderColumns = "id, driver_id, status, pickup_address, dropoff_address, amount_cents, created_at, completed_at"

// PostgresSource is the Postgres-backed RemoteSource implementation.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewPostgresSource creates a RemoteSource backed by the given pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// windowClause builds the date-window predicates for a filter. Argument
// numbering starts after the driver-id placeholder ($1).
func windowClause(f filter.Filter, args []any) (string, []any) {
	var sb strings.Builder
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		fmt.Fprintf(&sb, " AND %s >= $%d", effectiveTS, len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		fmt.Fprintf(&sb, " AND %s <= $%d", effectiveTS, len(args))
	}
	return sb.String(), args
}

func orderBy(ascending bool) string {
	if ascending {
		return fmt.Sprintf("ORDER BY %s ASC, id ASC", effectiveTS)
	}
	return fmt.Sprintf("ORDER BY %s DESC, id DESC", effectiveTS)
}

// QueryPage implements offset-mode pagination.
func (s *PostgresSource) QueryPage(ctx context.Context, driverID string, f filter.Filter) ([]Order, error) {
	args := []any{driverID}
	window, args := windowClause(f, args)

	args = append(args, f.Limit)
	limitArg := len(args)
	args = append(args, f.Offset)
	offsetArg := len(args)

	query := fmt.Sprintf(
		"SELECT %s FROM driver_orders WHERE driver_id = $1%s %s LIMIT $%d OFFSET $%d",
		orderColumns, window, orderBy(f.Ascending), limitArg, offsetArg,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}
	result, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		if err := s.checkDriverExists(ctx, driverID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// QueryCursorPage implements cursor-mode pagination. A zero cursorTS starts
// from the beginning of the total order. The cursor predicate and the ORDER
// BY both use the (timestamp, id) row comparison, so page boundaries are
// deterministic even when timestamps collide.
func (s *PostgresSource) QueryCursorPage(ctx context.Context, driverID string, f filter.Filter,
	cursorTS time.Time, cursorID string, direction Direction) ([]Order, error) {

	args := []any{driverID}
	window, args := windowClause(f, args)

	var boundary, ordering string
	if !cursorTS.IsZero() {
		args = append(args, cursorTS)
		tsArg := len(args)
		args = append(args, cursorID)
		idArg := len(args)
		if direction == DirectionPrev {
			// Newer than the cursor; fetched ascending and reversed below so
			// the page comes back in canonical newest-first order.
			boundary = fmt.Sprintf(" AND (%s, id) > ($%d, $%d)", effectiveTS, tsArg, idArg)
			ordering = orderBy(true)
		} else {
			boundary = fmt.Sprintf(" AND (%s, id) < ($%d, $%d)", effectiveTS, tsArg, idArg)
			ordering = orderBy(false)
		}
	} else {
		ordering = orderBy(f.Ascending)
	}

	args = append(args, f.Limit)
	query := fmt.Sprintf(
		"SELECT %s FROM driver_orders WHERE driver_id = $1%s%s %s LIMIT $%d",
		orderColumns, window, boundary, ordering, len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cursor page: %w", err)
	}
	result, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	if direction == DirectionPrev && !cursorTS.IsZero() {
		reverse(result)
	}
	if len(result) == 0 {
		if err := s.checkDriverExists(ctx, driverID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// CountRecords returns the number of records in the filter window.
func (s *PostgresSource) CountRecords(ctx context.Context, driverID string, f filter.Filter) (int64, error) {
	args := []any{driverID}
	window, args := windowClause(f, args)

	query := fmt.Sprintf("SELECT COUNT(*) FROM driver_orders WHERE driver_id = $1%s", window)

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// QueryAggregateStats returns summary statistics for the filter window.
func (s *PostgresSource) QueryAggregateStats(ctx context.Context, driverID string, f filter.Filter) (AggregateStats, error) {
	args := []any{driverID}
	window, args := windowClause(f, args)

	query := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(amount_cents), 0), COALESCE(AVG(amount_cents), 0) FROM driver_orders WHERE driver_id = $1%s",
		window,
	)

	var stats AggregateStats
	if err := s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalOrders, &stats.TotalAmountCents, &stats.AvgAmountCents,
	); err != nil {
		return AggregateStats{}, fmt.Errorf("query aggregate stats: %w", err)
	}
	return stats, nil
}

// checkDriverExists distinguishes "no matching orders" from "no such driver".
// Only consulted when a query came back empty, which keeps the common path to
// a single round trip.
func (s *PostgresSource) checkDriverExists(ctx context.Context, driverID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)", driverID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check driver: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, driverID)
	}
	return nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.DriverID, &o.Status, &o.PickupAddress, &o.DropoffAddress,
			&o.AmountCents, &o.CreatedAt, &o.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return result, nil
}

func reverse(orders []Order) {
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
}
