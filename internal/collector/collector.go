// Package collector keeps the live disaster snapshot fresh and serves
// windowed bulk queries against the disaster feed.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// Feed fetches raw disaster objects.
type Feed interface {
	FetchCurrent(ctx context.Context) ([]domain.RawDisaster, error)
	FetchWindow(ctx context.Context, w domain.Window) ([]domain.RawDisaster, error)
}

// Announcer broadcasts a freshly installed snapshot.
type Announcer interface {
	PublishSnapshot(ctx context.Context, records []domain.DisasterRecord) error
}

// Config tunes the collector.
type Config struct {
	Interval  time.Duration
	TTL       time.Duration
	WindowTTL time.Duration
	Announce  bool
}

// ErrRefreshInProgress is returned by Refresh when another refresh is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Collector is the single writer of the live snapshot.
type Collector struct {
	feed      Feed
	store     domain.DisasterStore
	windows   domain.WindowCache
	announcer Announcer
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	fetching sync.Mutex
	ready    atomic.Bool
	last     atomic.Pointer[time.Time]
}

// New creates a Collector. windows and announcer may be nil.
func New(feed Feed, store domain.DisasterStore, windows domain.WindowCache, announcer Announcer, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{
		feed:      feed,
		store:     store,
		windows:   windows,
		announcer: announcer,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run refreshes immediately and then once per interval until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector started", "interval", c.cfg.Interval, "ttl", c.cfg.TTL)

	ticker := c.clock.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.refreshAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			c.refreshAndLog(ctx)
		}
	}
}

func (c *Collector) refreshAndLog(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		if errors.Is(err, ErrRefreshInProgress) {
			c.logger.Debug("skipping refresh", "reason", err)
			return
		}
		c.logger.Warn("disaster refresh failed, keeping previous snapshot", "error", err)
	}
}

// Refresh fetches the current feed and replaces the live snapshot. On any
// failure the previous snapshot is left untouched.
func (c *Collector) Refresh(ctx context.Context) error {
	if !c.fetching.TryLock() {
		return ErrRefreshInProgress
	}
	defer c.fetching.Unlock()

	raw, err := c.feed.FetchCurrent(ctx)
	if err != nil {
		c.metrics.CollectorRefreshes.WithLabelValues("live", "error").Inc()
		return fmt.Errorf("fetch current disasters: %w", err)
	}

	records := domain.NormalizeDisasters(raw, c.logger)
	if err := c.store.ReplaceAll(ctx, records, c.cfg.TTL); err != nil {
		c.metrics.CollectorRefreshes.WithLabelValues("live", "error").Inc()
		return fmt.Errorf("replace snapshot: %w", err)
	}

	now := c.clock.Now()
	c.last.Store(&now)
	c.ready.Store(true)
	c.metrics.CollectorRefreshes.WithLabelValues("live", "success").Inc()
	c.metrics.SnapshotSize.Set(float64(len(records)))
	c.logger.Info("disaster snapshot refreshed", "events", len(raw), "disaster_count", len(records))

	if c.cfg.Announce && c.announcer != nil {
		// Publish failures are logged by the announcer and never undo the refresh.
		_ = c.announcer.PublishSnapshot(ctx, records)
	}
	return nil
}

// FetchWindow returns the disasters active during w, consulting the window
// cache before the feed. Successful fetches are cached for WindowTTL.
func (c *Collector) FetchWindow(ctx context.Context, w domain.Window) ([]domain.DisasterRecord, error) {
	if c.windows != nil {
		if records, ok := c.windows.Get(ctx, w); ok {
			c.logger.Debug("window cache hit", "window", w.Key(), "disaster_count", len(records))
			return records, nil
		}
	}

	raw, err := c.feed.FetchWindow(ctx, w)
	if err != nil {
		c.metrics.CollectorRefreshes.WithLabelValues("window", "error").Inc()
		return nil, fmt.Errorf("fetch window %s: %w", w.Key(), err)
	}
	records := domain.NormalizeDisasters(raw, c.logger)
	c.metrics.CollectorRefreshes.WithLabelValues("window", "success").Inc()

	if c.windows != nil {
		if err := c.windows.Put(ctx, w, records, c.cfg.WindowTTL); err != nil {
			c.logger.Warn("window cache write failed", "window", w.Key(), "error", err)
		}
	}
	c.logger.Info("fetched disaster window", "window", w.Key(), "disaster_count", len(records))
	return records, nil
}

// LastRefresh reports when the live snapshot was last replaced.
func (c *Collector) LastRefresh() (time.Time, bool) {
	t := c.last.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// CheckReadiness returns nil once at least one refresh has succeeded.
func (c *Collector) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("collector has not completed a refresh yet")
	}
	return nil
}
