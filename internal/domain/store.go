package domain

import (
	"context"
	"time"
)

// DisasterStore holds the live disaster snapshot. ReplaceAll swaps the whole
// snapshot in one step; ReadAll returns an empty slice when the snapshot is
// missing, expired, or unreadable.
type DisasterStore interface {
	ReplaceAll(ctx context.Context, records []DisasterRecord, ttl time.Duration) error
	ReadAll(ctx context.Context) []DisasterRecord
}

// WindowCache memoizes bulk feed queries per window, independent of the live
// snapshot.
type WindowCache interface {
	Get(ctx context.Context, w Window) ([]DisasterRecord, bool)
	Put(ctx context.Context, w Window, records []DisasterRecord, ttl time.Duration) error
}

// MatchStore keeps the alerting results of the most recent batch.
type MatchStore interface {
	ReplaceMatched(ctx context.Context, results []MatchResult) error
	ReadMatched(ctx context.Context) ([]MatchResult, error)
}

// RawEventStore parks events whose location could not be resolved so they can
// be retried later. TakeRaw removes what it returns.
type RawEventStore interface {
	AppendRaw(ctx context.Context, events []CalendarEvent) error
	TakeRaw(ctx context.Context) ([]CalendarEvent, error)
}

// MaxRawEvents caps the parked event backlog; the oldest entries drop first.
const MaxRawEvents = 1000
