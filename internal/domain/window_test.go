package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveWindow(t *testing.T) {
	events := []CalendarEvent{
		{ID: "b", StartTime: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)},
		{ID: "a", StartTime: time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)},
		{ID: "c", StartTime: time.Date(2024, 3, 25, 18, 0, 0, 0, time.UTC)},
	}

	w, err := DeriveWindow(events, DefaultWindowPad)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2024, 4, 4, 18, 0, 0, 0, time.UTC), w.To)
	assert.Equal(t, "2024-03-05:2024-04-04", w.Key())
	assert.True(t, w.Valid())
}

func TestDeriveWindow_Empty(t *testing.T) {
	_, err := DeriveWindow(nil, DefaultWindowPad)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestDeriveWindow_SkipsMissingStart(t *testing.T) {
	events := []CalendarEvent{
		{ID: "no-start"},
		{ID: "ok", StartTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	w, err := DeriveWindow(events, 24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), w.To)
}

func TestDeriveWindow_NoStartsUsesClock(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	w, err := DeriveWindow([]CalendarEvent{{ID: "x"}}, DefaultWindowPad)

	require.NoError(t, err)
	assert.Equal(t, now.Add(-DefaultWindowPad), w.From)
	assert.Equal(t, now.Add(DefaultWindowPad), w.To)
}

func TestDeriveWindow_NormalizesToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	w, err := DeriveWindow([]CalendarEvent{{StartTime: time.Date(2024, 3, 15, 22, 0, 0, 0, est)}}, 0)

	require.NoError(t, err)
	assert.Equal(t, time.UTC, w.From.Location())
	assert.Equal(t, "2024-03-16:2024-03-16", w.Key())
}

func TestWindow_Valid(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, Window{}.Valid())
	assert.False(t, Window{From: from.Add(time.Hour), To: from}.Valid())
	assert.True(t, Window{From: from, To: from}.Valid())
}
