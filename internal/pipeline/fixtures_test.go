package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
	"github.com/couchcryptid/disaster-match-service/internal/pipeline"
	"github.com/couchcryptid/disaster-match-service/internal/store"
)

type staticFetcher []domain.DisasterRecord

func (s staticFetcher) FetchWindow(context.Context, domain.Window) ([]domain.DisasterRecord, error) {
	return s, nil
}

func loadFixture(t *testing.T, name string, v any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestCoordinator_WithFixtureData(t *testing.T) {
	var feed domain.FeedResponse
	loadFixture(t, "eonet_events.json", &feed)
	body, err := os.ReadFile(filepath.Join("testdata", "calendar_events.json"))
	require.NoError(t, err)
	events, err := domain.DecodeEvents(body)
	require.NoError(t, err)

	disasters := domain.NormalizeDisasters(feed.Events, discardLogger())
	require.Len(t, disasters, 5, "one record per decodable geometry")

	raw := store.NewEvents()
	coord := pipeline.NewCoordinator(pipeline.CoordinatorDeps{
		Matcher: pipeline.NewMatcher(nil, 50, domain.EarthRadiusKm, discardLogger()),
		Fetcher: staticFetcher(disasters),
		Raw:     raw,
	}, pipeline.CoordinatorConfig{}, discardLogger(), observability.NewMetricsForTesting())

	results, err := coord.ProcessBatch(context.Background(), events)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "cal-1", results[0].Event.ID)
	assert.Equal(t, "EONET_6001", results[0].MatchedDisasters[0].ID)
	assert.Equal(t, "cal-2", results[1].Event.ID)
	assert.Equal(t, "EONET_6003", results[1].MatchedDisasters[0].ID)
	assert.InDelta(t, 0, results[1].DistancesKm[0], 0.01)

	parked, err := raw.TakeRaw(context.Background())
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "cal-3", parked[0].ID)
}

func TestFixture_StatisticsAndHotspots(t *testing.T) {
	var feed domain.FeedResponse
	loadFixture(t, "eonet_events.json", &feed)
	disasters := domain.NormalizeDisasters(feed.Events, discardLogger())

	stats := domain.Summarize(disasters)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Incidents)
	assert.Equal(t, 2, stats.Categories["Wildfires"])
	assert.Equal(t, 3, stats.Categories["Severe Storms"])

	assert.Empty(t, domain.Hotspots(disasters, 2), "fixture coordinates are all distinct")
}

func TestDeriveWindow_WithFakeClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(batchDay)
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	w, err := domain.DeriveWindow([]domain.CalendarEvent{{ID: "undated"}}, domain.DefaultWindowPad)
	require.NoError(t, err)
	assert.Equal(t, batchDay.Add(-domain.DefaultWindowPad), w.From)
	assert.Equal(t, batchDay.Add(domain.DefaultWindowPad), w.To)
}
