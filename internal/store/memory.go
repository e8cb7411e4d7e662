// Package store provides in-process implementations of the domain stores,
// used by offline tools and tests.
package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

type snapshot struct {
	records   []domain.DisasterRecord
	expiresAt time.Time
}

func (s *snapshot) live(now time.Time) bool {
	return s != nil && now.Before(s.expiresAt)
}

// Disasters is an in-memory domain.DisasterStore. Readers load one immutable
// snapshot pointer, so a concurrent ReplaceAll is never observed half-done.
type Disasters struct {
	clock   clockwork.Clock
	current atomic.Pointer[snapshot]
}

// NewDisasters creates an empty store that expires snapshots against clock.
func NewDisasters(clock clockwork.Clock) *Disasters {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Disasters{clock: clock}
}

func (d *Disasters) ReplaceAll(_ context.Context, records []domain.DisasterRecord, ttl time.Duration) error {
	d.current.Store(&snapshot{
		records:   slices.Clone(records),
		expiresAt: d.clock.Now().Add(ttl),
	})
	return nil
}

func (d *Disasters) ReadAll(_ context.Context) []domain.DisasterRecord {
	s := d.current.Load()
	if !s.live(d.clock.Now()) {
		return []domain.DisasterRecord{}
	}
	if s.records == nil {
		return []domain.DisasterRecord{}
	}
	return slices.Clone(s.records)
}

// Windows is an in-memory domain.WindowCache.
type Windows struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	entries map[string]*snapshot
}

// NewWindows creates an empty window cache.
func NewWindows(clock clockwork.Clock) *Windows {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Windows{clock: clock, entries: make(map[string]*snapshot)}
}

func (w *Windows) Get(_ context.Context, win domain.Window) ([]domain.DisasterRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.entries[win.Key()]
	if !ok {
		return nil, false
	}
	if !s.live(w.clock.Now()) {
		delete(w.entries, win.Key())
		return nil, false
	}
	return slices.Clone(s.records), true
}

func (w *Windows) Put(_ context.Context, win domain.Window, records []domain.DisasterRecord, ttl time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[win.Key()] = &snapshot{records: slices.Clone(records), expiresAt: w.clock.Now().Add(ttl)}
	return nil
}

// Events is an in-memory domain.MatchStore and domain.RawEventStore.
type Events struct {
	mu      sync.Mutex
	matched []domain.MatchResult
	raw     []domain.CalendarEvent
}

// NewEvents creates empty matched and raw event lists.
func NewEvents() *Events {
	return &Events{}
}

func (e *Events) ReplaceMatched(_ context.Context, results []domain.MatchResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matched = slices.Clone(results)
	return nil
}

func (e *Events) ReadMatched(_ context.Context) ([]domain.MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.matched == nil {
		return []domain.MatchResult{}, nil
	}
	return slices.Clone(e.matched), nil
}

func (e *Events) AppendRaw(_ context.Context, events []domain.CalendarEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.raw = append(e.raw, events...)
	if over := len(e.raw) - domain.MaxRawEvents; over > 0 {
		e.raw = slices.Clone(e.raw[over:])
	}
	return nil
}

func (e *Events) TakeRaw(_ context.Context) ([]domain.CalendarEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	taken := e.raw
	e.raw = nil
	if taken == nil {
		taken = []domain.CalendarEvent{}
	}
	return taken, nil
}
