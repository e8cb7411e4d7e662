package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// ErrThrottled marks a request rejected by the local limiter or by Mapbox (429).
var ErrThrottled = errors.New("mapbox: rate limited")

// Client forward-geocodes calendar locations through the Mapbox Places API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client that issues at most rps requests per second.
func NewClient(token string, timeout time.Duration, rps float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// ForwardGeocode returns the best match for query. A result without a
// coordinate and a nil error means Mapbox found nothing.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	if err := c.wait(ctx); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("throttled").Inc()
		return domain.GeocodingResult{}, err
	}

	start := time.Now()
	f, found, err := c.bestFeature(ctx, c.forwardURL(query))
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	var result domain.GeocodingResult
	if err == nil && found {
		result = f.result()
	}
	c.metrics.GeocodeRequests.WithLabelValues(outcome(result, err)).Inc()
	if err != nil {
		c.logger.Debug("mapbox request failed", "location", query, "error", err)
	}
	return result, err
}

// wait blocks for a limiter token. It fails fast when the token would arrive
// after the ctx deadline.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	}
	return nil
}

func (c *Client) forwardURL(query string) string {
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"autocomplete": {"false"},
	}
	return fmt.Sprintf("%s/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())
}

func (c *Client) bestFeature(ctx context.Context, target string) (feature, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return feature{}, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return feature{}, false, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return feature{}, false, fmt.Errorf("%w: status %d", ErrThrottled, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return feature{}, false, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return feature{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Features) == 0 {
		return feature{}, false, nil
	}
	return body.Features[0], true, nil
}

func outcome(result domain.GeocodingResult, err error) string {
	switch {
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case err != nil:
		return "error"
	case result.Coordinate == nil:
		return "empty"
	default:
		return "success"
	}
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) result() domain.GeocodingResult {
	r := domain.GeocodingResult{PlaceName: f.PlaceName, Confidence: f.Relevance}
	if len(f.Center) == 2 {
		r.Coordinate = &domain.Coordinate{Lat: f.Center[1], Lon: f.Center[0]}
	}
	return r
}
