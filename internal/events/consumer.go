// Package events consumes order-status-update events and turns them into
// driver-scoped cache invalidations. Status changes mutate the underlying
// record set, so the driver's cached pages, counts, and summaries must not
// be served afterwards; invalidation is the explicit message-passing path
// for that, never a direct cross-component mutation.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/courierops/orderhistory/pkg/logging"
)

// StatusUpdate is the wire form of an order-status event.
type StatusUpdate struct {
	DriverID string `json:"driver_id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
}

// Reader is the subset of kafka-go's Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Invalidator is the cache surface the consumer drives.
type Invalidator interface {
	InvalidateDriver(ctx context.Context, driverID string) error
}

// Consumer reads status updates and invalidates the affected driver's cache
// entries.
type Consumer struct {
	reader Reader
	cache  Invalidator
	logger zerolog.Logger
}

// NewConsumer creates the invalidation consumer.
func NewConsumer(reader Reader, cache Invalidator, logger *zerolog.Logger) *Consumer {
	l := logging.NewLogger("events")
	if logger != nil {
		l = *logger
	}
	return &Consumer{reader: reader, cache: cache, logger: l}
}

// NewReader builds a kafka-go reader for the status-update topic.
func NewReader(brokers []string, topic, groupID string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0, // explicit commits, after invalidation succeeded
	})
}

// Run consumes until the context is cancelled. A message is committed only
// after its invalidation went through, so a crash can at worst repeat an
// invalidation, never skip one.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info().Msg("Starting status-update consumer")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info().Msg("Status-update consumer stopping")
				return
			}
			c.logger.Warn().Err(err).Msg("Fetch failed, backing off")
			sleepWithContext(ctx, 500*time.Millisecond)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error().Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("Invalidation failed; message will not be committed")
			sleepWithContext(ctx, 200*time.Millisecond)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Commit failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) error {
	var update StatusUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		// Malformed events are logged and committed; retrying cannot fix them.
		c.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed status update")
		return nil
	}
	if update.DriverID == "" {
		c.logger.Warn().Int64("offset", msg.Offset).Msg("Dropping status update without driver id")
		return nil
	}

	if err := c.cache.InvalidateDriver(ctx, update.DriverID); err != nil {
		return fmt.Errorf("invalidate driver %s: %w", update.DriverID, err)
	}

	c.logger.Info().
		Str("driver_id", update.DriverID).
		Str("order_id", update.OrderID).
		Str("status", update.Status).
		Msg("Invalidated driver cache after status update")
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
