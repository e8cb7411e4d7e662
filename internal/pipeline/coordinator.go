package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// WindowFetcher returns the disasters active during a window.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, w domain.Window) ([]domain.DisasterRecord, error)
}

// ResultPublisher broadcasts the alerting results of a batch.
type ResultPublisher interface {
	PublishMatches(ctx context.Context, results []domain.MatchResult) error
}

// CoordinatorConfig tunes batch processing.
type CoordinatorConfig struct {
	WindowPad          time.Duration
	ResolveConcurrency int
}

// Coordinator runs calendar-event batches through resolution, windowed
// disaster lookup, and matching.
type Coordinator struct {
	resolver  *domain.Resolver
	matcher   *Matcher
	fetcher   WindowFetcher
	live      domain.DisasterStore
	matches   domain.MatchStore
	raw       domain.RawEventStore
	publisher ResultPublisher
	cfg       CoordinatorConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// CoordinatorDeps groups the collaborators of a Coordinator. Matches, Raw,
// and Publisher are optional.
type CoordinatorDeps struct {
	Resolver  *domain.Resolver
	Matcher   *Matcher
	Fetcher   WindowFetcher
	Live      domain.DisasterStore
	Matches   domain.MatchStore
	Raw       domain.RawEventStore
	Publisher ResultPublisher
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(deps CoordinatorDeps, cfg CoordinatorConfig, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if cfg.WindowPad <= 0 {
		cfg.WindowPad = domain.DefaultWindowPad
	}
	if cfg.ResolveConcurrency < 1 {
		cfg.ResolveConcurrency = 1
	}
	return &Coordinator{
		resolver:  deps.Resolver,
		matcher:   deps.Matcher,
		fetcher:   deps.Fetcher,
		live:      deps.Live,
		matches:   deps.Matches,
		raw:       deps.Raw,
		publisher: deps.Publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// MatchEvent matches a single event against the live snapshot.
func (c *Coordinator) MatchEvent(ctx context.Context, event domain.CalendarEvent) domain.MatchResult {
	at := c.resolve(ctx, event)
	var disasters []domain.DisasterRecord
	if at != nil && c.live != nil {
		disasters = c.live.ReadAll(ctx)
	}
	result := c.matcher.MatchAt(event, at, disasters)
	c.metrics.EventsMatched.Inc()
	if result.Alert {
		c.metrics.AlertsRaised.Inc()
	}
	return result
}

// ProcessBatch matches events against the disasters active within the
// padded span of their start times and returns the alerting subset in input
// order.
func (c *Coordinator) ProcessBatch(ctx context.Context, events []domain.CalendarEvent) ([]domain.MatchResult, error) {
	w, err := domain.DeriveWindow(events, c.cfg.WindowPad)
	if err != nil {
		return nil, err
	}
	return c.ProcessBatchWindow(ctx, events, w)
}

// ProcessBatchWindow is ProcessBatch with an explicit disaster window.
func (c *Coordinator) ProcessBatchWindow(ctx context.Context, events []domain.CalendarEvent, w domain.Window) ([]domain.MatchResult, error) {
	if len(events) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if !w.Valid() {
		return nil, fmt.Errorf("%w: invalid window %s", domain.ErrMalformedMessage, w.Key())
	}
	start := time.Now()

	coords := c.resolveAll(ctx, events)

	disasters, err := c.fetcher.FetchWindow(ctx, w)
	if err != nil {
		c.logger.Warn("disaster window unavailable, matching against empty set",
			"window", w.Key(),
			"error", err,
		)
		disasters = nil
	}

	results := make([]domain.MatchResult, 0, len(events))
	var unresolved []domain.CalendarEvent
	for i, event := range events {
		if coords[i] == nil && geocodable(event.Location) {
			unresolved = append(unresolved, event)
		}
		if r := c.matcher.MatchAt(event, coords[i], disasters); r.Alert {
			results = append(results, r)
		}
	}

	c.metrics.EventsMatched.Add(float64(len(events)))
	c.metrics.AlertsRaised.Add(float64(len(results)))
	c.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())

	c.park(ctx, unresolved)
	c.record(ctx, results)

	c.logger.Info("batch processed",
		"events", len(events),
		"alerts", len(results),
		"unresolved", len(unresolved),
		"window", w.Key(),
		"disaster_count", len(disasters),
	)
	return results, nil
}

// ProcessRaw drains the parked events and runs them as one batch.
func (c *Coordinator) ProcessRaw(ctx context.Context) ([]domain.MatchResult, int, error) {
	if c.raw == nil {
		return nil, 0, domain.ErrNoRawEvents
	}
	events, err := c.raw.TakeRaw(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("take raw events: %w", err)
	}
	if len(events) == 0 {
		return nil, 0, domain.ErrNoRawEvents
	}
	results, err := c.ProcessBatch(ctx, events)
	return results, len(events), err
}

// resolveAll resolves every event location concurrently. coords[i] belongs to
// events[i].
func (c *Coordinator) resolveAll(ctx context.Context, events []domain.CalendarEvent) []*domain.Coordinate {
	coords := make([]*domain.Coordinate, len(events))
	var g errgroup.Group
	g.SetLimit(c.cfg.ResolveConcurrency)
	for i := range events {
		g.Go(func() error {
			coords[i] = c.resolve(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()
	return coords
}

func (c *Coordinator) resolve(ctx context.Context, event domain.CalendarEvent) *domain.Coordinate {
	if c.resolver == nil {
		return event.Location.Coordinate()
	}
	return c.resolver.ResolveLocation(ctx, event.Location)
}

func (c *Coordinator) park(ctx context.Context, events []domain.CalendarEvent) {
	if len(events) == 0 || c.raw == nil {
		return
	}
	if err := c.raw.AppendRaw(ctx, events); err != nil {
		c.logger.Warn("park unresolved events failed", "count", len(events), "error", err)
	}
}

func (c *Coordinator) record(ctx context.Context, results []domain.MatchResult) {
	if c.matches != nil {
		if err := c.matches.ReplaceMatched(ctx, results); err != nil {
			c.logger.Warn("store matched events failed", "error", err)
		}
	}
	if c.publisher != nil && len(results) > 0 {
		// Failures are logged by the publisher and never fail the batch.
		_ = c.publisher.PublishMatches(ctx, results)
	}
}

// geocodable reports whether loc depends on free-text geocoding.
func geocodable(loc domain.EventLocation) bool {
	return loc.Point == nil && loc.Bounds == nil && strings.TrimSpace(loc.Text) != ""
}
