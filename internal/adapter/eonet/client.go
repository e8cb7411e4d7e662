package eonet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// DefaultURL is the public EONET v3 events endpoint.
const DefaultURL = "https://eonet.gsfc.nasa.gov/api/v3/events"

// Client fetches raw disaster events from the EONET API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an EONET client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchCurrent returns the feed's currently open events.
func (c *Client) FetchCurrent(ctx context.Context) ([]domain.RawDisaster, error) {
	return c.fetch(ctx, nil)
}

// FetchWindow returns events active during w, queried at day granularity.
func (c *Client) FetchWindow(ctx context.Context, w domain.Window) ([]domain.RawDisaster, error) {
	params := url.Values{
		"start": {w.From.UTC().Format(domain.DateLayout)},
		"end":   {w.To.UTC().Format(domain.DateLayout)},
	}
	return c.fetch(ctx, params)
}

func (c *Client) fetch(ctx context.Context, params url.Values) ([]domain.RawDisaster, error) {
	u := c.baseURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrFeed, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FeedDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: request: %w", domain.ErrFeed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrFeed, resp.StatusCode, body)
	}

	var feed domain.FeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrFeed, err)
	}

	c.logger.Debug("fetched disaster feed", "events", len(feed.Events), "query", params.Encode())
	return feed.Events, nil
}
