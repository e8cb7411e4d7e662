package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// Cache keys.
const (
	DisastersKey     = "disaster_events"
	windowKeyPrefix  = "disasters:window:"
	MatchedEventsKey = "matched_events"
	RawEventsKey     = "raw_events"
)

// DisasterStore keeps the live snapshot as a single JSON value, so one SET
// with an expiry replaces it atomically.
type DisasterStore struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewDisasterStore creates a Redis-backed domain.DisasterStore.
func NewDisasterStore(client *goredis.Client, logger *slog.Logger) *DisasterStore {
	return &DisasterStore{client: client, logger: logger}
}

func (s *DisasterStore) ReplaceAll(ctx context.Context, records []domain.DisasterRecord, ttl time.Duration) error {
	if records == nil {
		records = []domain.DisasterRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("serialize disasters: %w", err)
	}
	if err := s.client.Set(ctx, DisastersKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrCacheUnavailable, DisastersKey, err)
	}
	return nil
}

func (s *DisasterStore) ReadAll(ctx context.Context) []domain.DisasterRecord {
	records, err := getRecords(ctx, s.client, DisastersKey)
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logger.Warn("disaster snapshot unavailable", "key", DisastersKey, "error", err)
		}
		return []domain.DisasterRecord{}
	}
	return records
}

// WindowCache stores windowed bulk fetches under one key per window.
type WindowCache struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewWindowCache creates a Redis-backed domain.WindowCache.
func NewWindowCache(client *goredis.Client, logger *slog.Logger) *WindowCache {
	return &WindowCache{client: client, logger: logger}
}

func windowKey(w domain.Window) string {
	return windowKeyPrefix + w.Key()
}

func (c *WindowCache) Get(ctx context.Context, w domain.Window) ([]domain.DisasterRecord, bool) {
	records, err := getRecords(ctx, c.client, windowKey(w))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("window cache read failed", "window", w.Key(), "error", err)
		}
		return nil, false
	}
	return records, true
}

func (c *WindowCache) Put(ctx context.Context, w domain.Window, records []domain.DisasterRecord, ttl time.Duration) error {
	if records == nil {
		records = []domain.DisasterRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("serialize window: %w", err)
	}
	if err := c.client.Set(ctx, windowKey(w), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set window %s: %w", domain.ErrCacheUnavailable, w.Key(), err)
	}
	return nil
}

func getRecords(ctx context.Context, client *goredis.Client, key string) ([]domain.DisasterRecord, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var records []domain.DisasterRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if records == nil {
		records = []domain.DisasterRecord{}
	}
	return records, nil
}
