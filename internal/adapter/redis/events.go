package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// EventStore keeps matched results and parked raw events as Redis lists of
// JSON documents. Multi-step updates run inside MULTI/EXEC.
type EventStore struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewEventStore creates a Redis-backed domain.MatchStore and domain.RawEventStore.
func NewEventStore(client *goredis.Client, logger *slog.Logger) *EventStore {
	return &EventStore{client: client, logger: logger}
}

func (s *EventStore) ReplaceMatched(ctx context.Context, results []domain.MatchResult) error {
	values, err := encodeAll(results)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, MatchedEventsKey)
	if len(values) > 0 {
		pipe.RPush(ctx, MatchedEventsKey, values...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: replace %s: %w", domain.ErrCacheUnavailable, MatchedEventsKey, err)
	}
	return nil
}

func (s *EventStore) ReadMatched(ctx context.Context) ([]domain.MatchResult, error) {
	items, err := s.client.LRange(ctx, MatchedEventsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrCacheUnavailable, MatchedEventsKey, err)
	}
	return decodeAll[domain.MatchResult](items, s.logger, MatchedEventsKey), nil
}

func (s *EventStore) AppendRaw(ctx context.Context, events []domain.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	values, err := encodeAll(events)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, RawEventsKey, values...)
	pipe.LTrim(ctx, RawEventsKey, -domain.MaxRawEvents, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append %s: %w", domain.ErrCacheUnavailable, RawEventsKey, err)
	}
	return nil
}

func (s *EventStore) TakeRaw(ctx context.Context) ([]domain.CalendarEvent, error) {
	pipe := s.client.TxPipeline()
	lrange := pipe.LRange(ctx, RawEventsKey, 0, -1)
	pipe.Del(ctx, RawEventsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: take %s: %w", domain.ErrCacheUnavailable, RawEventsKey, err)
	}
	return decodeAll[domain.CalendarEvent](lrange.Val(), s.logger, RawEventsKey), nil
}

func encodeAll[T any](items []T) ([]any, error) {
	values := make([]any, len(items))
	for i := range items {
		data, err := json.Marshal(items[i])
		if err != nil {
			return nil, fmt.Errorf("serialize list item: %w", err)
		}
		values[i] = data
	}
	return values, nil
}

// decodeAll skips entries that no longer decode rather than failing the read.
func decodeAll[T any](items []string, logger *slog.Logger, key string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			logger.Warn("skipping undecodable list entry", "key", key, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}
