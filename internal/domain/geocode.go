package domain

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// DefaultResolveTimeout bounds a single geocoding lookup.
const DefaultResolveTimeout = 5 * time.Second

// Resolver maps event locations to coordinates. Provider failures, timeouts,
// and empty queries all resolve to nil; the resolver never retries.
type Resolver struct {
	geocoder Geocoder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewResolver wraps geocoder. A nil geocoder resolves only structured
// locations; every free-text lookup yields nil.
func NewResolver(geocoder Geocoder, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{geocoder: geocoder, timeout: timeout, logger: logger}
}

// Resolve geocodes free text.
func (r *Resolver) Resolve(ctx context.Context, text string) *Coordinate {
	query := strings.TrimSpace(text)
	if query == "" || r.geocoder == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		r.logger.Warn("forward geocoding failed",
			"location", query,
			"error", err,
		)
		return nil
	}
	if result.Coordinate == nil || !result.Coordinate.Valid() {
		r.logger.Warn("location not found", "location", query)
		return nil
	}
	c := *result.Coordinate
	return &c
}

// ResolveLocation returns the point for loc, falling back to geocoding its text
// when neither a point nor bounds is present.
func (r *Resolver) ResolveLocation(ctx context.Context, loc EventLocation) *Coordinate {
	if c := loc.Coordinate(); c != nil {
		return c
	}
	if loc.Point != nil || loc.Bounds != nil {
		r.logger.Warn("event location out of range")
		return nil
	}
	return r.Resolve(ctx, loc.Text)
}
