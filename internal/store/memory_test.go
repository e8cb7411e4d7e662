package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

func records(ids ...string) []domain.DisasterRecord {
	out := make([]domain.DisasterRecord, len(ids))
	for i, id := range ids {
		out[i] = domain.DisasterRecord{ID: id, Title: "t-" + id, Coordinate: domain.Coordinate{Lat: float64(i), Lon: float64(i)}}
	}
	return out
}

func TestDisasters_ReplaceThenRead(t *testing.T) {
	ctx := context.Background()
	s := NewDisasters(clockwork.NewFakeClock())

	want := records("a", "b")
	require.NoError(t, s.ReplaceAll(ctx, want, time.Hour))
	assert.Equal(t, want, s.ReadAll(ctx))

	require.NoError(t, s.ReplaceAll(ctx, records("c"), time.Hour))
	got := s.ReadAll(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID, "replace discards the previous snapshot")
}

func TestDisasters_NeverPopulated(t *testing.T) {
	got := NewDisasters(nil).ReadAll(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDisasters_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := NewDisasters(clock)

	require.NoError(t, s.ReplaceAll(ctx, records("a"), time.Hour))

	clock.Advance(59 * time.Minute)
	assert.Len(t, s.ReadAll(ctx), 1)

	clock.Advance(time.Minute)
	assert.Empty(t, s.ReadAll(ctx))
}

func TestDisasters_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewDisasters(clockwork.NewFakeClock())
	require.NoError(t, s.ReplaceAll(ctx, records("a"), time.Hour))

	got := s.ReadAll(ctx)
	got[0].ID = "mutated"
	assert.Equal(t, "a", s.ReadAll(ctx)[0].ID)
}

func TestDisasters_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewDisasters(clockwork.NewFakeClock())
	small := records("a")
	large := records("b", "c", "d", "e")
	require.NoError(t, s.ReplaceAll(ctx, small, time.Hour))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				_ = s.ReplaceAll(ctx, large, time.Hour)
			} else {
				_ = s.ReplaceAll(ctx, small, time.Hour)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			n := len(s.ReadAll(ctx))
			assert.Contains(t, []int{len(small), len(large)}, n)
		}
	}()
	wg.Wait()
}

func TestWindows_GetPut(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := NewWindows(clock)
	w := domain.Window{From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC)}

	_, ok := c.Get(ctx, w)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, w, records("a"), 30*time.Minute))
	got, ok := c.Get(ctx, w)
	require.True(t, ok)
	assert.Len(t, got, 1)

	clock.Advance(30 * time.Minute)
	_, ok = c.Get(ctx, w)
	assert.False(t, ok)
}

func TestWindows_EmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	c := NewWindows(clockwork.NewFakeClock())
	w := domain.Window{From: time.Unix(0, 0).UTC(), To: time.Unix(86400, 0).UTC()}

	require.NoError(t, c.Put(ctx, w, []domain.DisasterRecord{}, time.Minute))
	got, ok := c.Get(ctx, w)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestEvents_Matched(t *testing.T) {
	ctx := context.Background()
	e := NewEvents()

	got, err := e.ReadMatched(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	first := []domain.MatchResult{{Event: domain.CalendarEvent{ID: "1"}, Alert: true}}
	second := []domain.MatchResult{{Event: domain.CalendarEvent{ID: "2"}, Alert: true}}
	require.NoError(t, e.ReplaceMatched(ctx, first))
	require.NoError(t, e.ReplaceMatched(ctx, second))

	got, err = e.ReadMatched(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestEvents_Raw(t *testing.T) {
	ctx := context.Background()
	e := NewEvents()

	require.NoError(t, e.AppendRaw(ctx, []domain.CalendarEvent{{ID: "1"}}))
	require.NoError(t, e.AppendRaw(ctx, []domain.CalendarEvent{{ID: "2"}, {ID: "3"}}))

	got, err := e.TakeRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.CalendarEvent{{ID: "1"}, {ID: "2"}, {ID: "3"}}, got)

	got, err = e.TakeRaw(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEvents_RawCapped(t *testing.T) {
	ctx := context.Background()
	e := NewEvents()

	batch := make([]domain.CalendarEvent, domain.MaxRawEvents+5)
	for i := range batch {
		batch[i] = domain.CalendarEvent{ID: fmt.Sprintf("evt-%d", i)}
	}
	require.NoError(t, e.AppendRaw(ctx, batch))

	got, err := e.TakeRaw(ctx)
	require.NoError(t, err)
	require.Len(t, got, domain.MaxRawEvents)
	assert.Equal(t, "evt-5", got[0].ID)
}
