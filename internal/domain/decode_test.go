package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents(t *testing.T) {
	const single = `{"id":"evt-1","summary":"Standup","start_time":"2024-03-15T09:00:00Z","location":{"point":{"lat":40.7128,"lon":-74.006}}}`

	t.Run("single event", func(t *testing.T) {
		events, err := DecodeEvents([]byte(single))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "evt-1", events[0].ID)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), events[0].StartTime)
		require.NotNil(t, events[0].Location.Point)
		assert.Equal(t, 40.7128, events[0].Location.Point.Lat)
	})

	t.Run("array", func(t *testing.T) {
		events, err := DecodeEvents([]byte(`[` + single + `,{"id":"evt-2","location":{"text":"Paris"}}]`))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "Paris", events[1].Location.Text)
	})

	t.Run("envelope", func(t *testing.T) {
		events, err := DecodeEvents([]byte(`{"events":[` + single + `]}`))
		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("empty envelope", func(t *testing.T) {
		events, err := DecodeEvents([]byte(`{"events":[]}`))
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("bounds location", func(t *testing.T) {
		events, err := DecodeEvents([]byte(`{"id":"b","location":{"bounds":{"northeast":{"lat":41,"lon":-73},"southwest":{"lat":40,"lon":-75}}}}`))
		require.NoError(t, err)
		require.NotNil(t, events[0].Location.Bounds)
		assert.Equal(t, Coordinate{Lat: 40.5, Lon: -74}, events[0].Location.Bounds.Center())
	})

	for name, body := range map[string]string{
		"empty body":       "",
		"whitespace":       "   ",
		"not json":         "hello",
		"bare number":      "42",
		"broken object":    `{"id":`,
		"events not array": `{"events":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvents([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}
