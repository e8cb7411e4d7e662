package eonet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

const feedBody = `{
  "title": "EONET Events",
  "events": [
    {
      "id": "EONET_6512",
      "title": "Tropical Storm Nadine",
      "categories": [{"id": "severeStorms", "title": "Severe Storms"}],
      "geometry": [{"date": "2024-10-19T00:00:00Z", "type": "Point", "coordinates": [-86.6, 17.1]}]
    }
  ]
}`

func testClient(url string) *Client {
	return NewClient(url, time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	events, err := testClient(srv.URL).FetchCurrent(context.Background())

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "EONET_6512", events[0].ID)
	assert.Equal(t, "Severe Storms", events[0].Categories[0].Title)
	require.Len(t, events[0].Geometry, 1)
	assert.Equal(t, "Point", events[0].Geometry[0].Type)
}

func TestClient_FetchWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-03-05", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-04-04", r.URL.Query().Get("end"))
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	window := domain.Window{
		From: time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 4, 18, 0, 0, 0, time.UTC),
	}
	events, err := testClient(srv.URL).FetchWindow(context.Background(), window)

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCurrent(context.Background())

	require.ErrorIs(t, err, domain.ErrFeed)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCurrent(context.Background())
	require.ErrorIs(t, err, domain.ErrFeed)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 20 * time.Millisecond

	_, err := c.FetchCurrent(context.Background())
	require.ErrorIs(t, err, domain.ErrFeed)
}

func TestNewClient_DefaultURL(t *testing.T) {
	c := NewClient("", time.Second, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, DefaultURL, c.baseURL)
}
