package domain

import (
	"fmt"
	"time"
)

// DateLayout is the day granularity the disaster feed accepts for window bounds.
const DateLayout = "2006-01-02"

// DefaultWindowPad is how far a batch window extends past its earliest and
// latest event start.
const DefaultWindowPad = 10 * 24 * time.Hour

// Window is an inclusive time range used to query the disaster feed.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Key identifies the window at feed granularity, e.g. "2024-03-10:2024-04-04".
func (w Window) Key() string {
	return fmt.Sprintf("%s:%s", w.From.UTC().Format(DateLayout), w.To.UTC().Format(DateLayout))
}

// Valid reports whether both bounds are set and ordered.
func (w Window) Valid() bool {
	return !w.From.IsZero() && !w.To.IsZero() && !w.To.Before(w.From)
}

// DeriveWindow computes [min(start) - pad, max(start) + pad] over the batch.
// Events without a start time do not contribute; if none has one, the window
// is centered on the current clock time. An empty batch is ErrEmptyBatch.
func DeriveWindow(events []CalendarEvent, pad time.Duration) (Window, error) {
	if len(events) == 0 {
		return Window{}, ErrEmptyBatch
	}

	var earliest, latest time.Time
	for i := range events {
		start := events[i].StartTime
		if start.IsZero() {
			continue
		}
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
		if latest.IsZero() || start.After(latest) {
			latest = start
		}
	}

	if earliest.IsZero() {
		t := now()
		earliest, latest = t, t
	}

	return Window{
		From: earliest.Add(-pad).UTC(),
		To:   latest.Add(pad).UTC(),
	}, nil
}
