// Package pipeline matches calendar events against disaster records, both
// per request and for batches pulled from the work queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// Extractor pulls the next work-queue delivery.
type Extractor interface {
	Extract(ctx context.Context) (domain.Delivery, error)
}

// BatchProcessor matches a batch of events.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []domain.CalendarEvent) ([]domain.MatchResult, error)
}

// Consumer drives the work queue: decode, process, then ack or requeue.
type Consumer struct {
	extractor Extractor
	processor BatchProcessor
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewConsumer creates a Consumer.
func NewConsumer(e Extractor, p BatchProcessor, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		extractor: e,
		processor: p,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the consumer has handled a delivery.
func (c *Consumer) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("consumer has not processed any messages yet")
	}
	return nil
}

// Run consumes deliveries until the context is cancelled. A delivery that
// could be neither processed nor requeued stops the consumer with an error,
// since later acks on its partition would commit past it.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	c.metrics.ConsumerRunning.Set(1)
	defer c.metrics.ConsumerRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		default:
		}

		cont, err := c.handleNext(ctx, &backoff)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// handleNext processes one delivery. Returns false if the consumer should stop.
func (c *Consumer) handleNext(ctx context.Context, backoff *time.Duration) (bool, error) {
	d, err := c.extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		c.logger.Error("extract message failed", "error", err)
		return c.backoffOrStop(ctx, backoff), nil
	}
	*backoff = initialBackoff
	c.metrics.Messages.WithLabelValues("consumed").Inc()

	events, err := domain.DecodeEvents(d.Value)
	if err != nil {
		c.drop(ctx, d, "undecodable message", err)
		return true, nil
	}

	_, err = c.processor.ProcessBatch(ctx, events)
	switch {
	case errors.Is(err, domain.ErrEmptyBatch), errors.Is(err, domain.ErrMalformedMessage):
		c.drop(ctx, d, "rejected batch", err)
		return true, nil
	case err != nil:
		c.logger.Error("process batch failed, requeueing",
			"error", err,
			"offset", d.Offset,
			"redeliveries", d.Redeliveries,
		)
		if err := c.requeue(ctx, d); err != nil {
			return false, fmt.Errorf("delivery at %s/%d offset %d left unacknowledged: %w",
				d.Topic, d.Partition, d.Offset, err)
		}
		return c.backoffOrStop(ctx, backoff), nil
	}

	c.ack(ctx, d)
	c.metrics.Messages.WithLabelValues("acked").Inc()
	c.ready.Store(true)
	return true, nil
}

// drop acknowledges a delivery that can never succeed.
func (c *Consumer) drop(ctx context.Context, d domain.Delivery, reason string, err error) {
	c.logger.Warn(reason+", dropping message",
		"error", err,
		"topic", d.Topic,
		"partition", d.Partition,
		"offset", d.Offset,
	)
	c.metrics.Messages.WithLabelValues("dropped").Inc()
	c.ack(ctx, d)
}

func (c *Consumer) ack(ctx context.Context, d domain.Delivery) {
	if d.Ack == nil {
		return
	}
	if err := d.Ack(ctx); err != nil {
		c.logger.Warn("ack failed", "error", err,
			"topic", d.Topic, "partition", d.Partition, "offset", d.Offset)
	}
}

func (c *Consumer) requeue(ctx context.Context, d domain.Delivery) error {
	if d.Requeue == nil {
		return nil
	}
	if err := d.Requeue(ctx); err != nil {
		return err
	}
	c.metrics.Messages.WithLabelValues("requeued").Inc()
	return nil
}

// backoffOrStop sleeps with the current backoff and advances it. Returns false
// if the consumer should stop.
func (c *Consumer) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
