package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// Matcher compares one event against a set of disasters.
type Matcher struct {
	resolver    *domain.Resolver
	thresholdKm float64
	radiusKm    float64
	logger      *slog.Logger
}

// NewMatcher creates a Matcher. A non-positive radius falls back to the
// Earth's mean radius.
func NewMatcher(resolver *domain.Resolver, thresholdKm, radiusKm float64, logger *slog.Logger) *Matcher {
	if radiusKm <= 0 {
		radiusKm = domain.EarthRadiusKm
	}
	return &Matcher{
		resolver:    resolver,
		thresholdKm: thresholdKm,
		radiusKm:    radiusKm,
		logger:      logger,
	}
}

// ThresholdKm returns the configured match distance.
func (m *Matcher) ThresholdKm() float64 { return m.thresholdKm }

// MatchOne resolves the event location and matches it against disasters.
func (m *Matcher) MatchOne(ctx context.Context, event domain.CalendarEvent, disasters []domain.DisasterRecord) domain.MatchResult {
	var at *domain.Coordinate
	if m.resolver != nil {
		at = m.resolver.ResolveLocation(ctx, event.Location)
	} else {
		at = event.Location.Coordinate()
	}
	return m.MatchAt(event, at, disasters)
}

// MatchAt matches an event whose location has already been resolved to at.
// A nil at never alerts.
func (m *Matcher) MatchAt(event domain.CalendarEvent, at *domain.Coordinate, disasters []domain.DisasterRecord) domain.MatchResult {
	if at == nil {
		m.logger.Warn("event location unresolved, skipping match", "event_id", event.ID)
		return domain.NewMatchResult(event, nil, nil, nil)
	}
	matched, distances := domain.WithinRadius(*at, disasters, m.thresholdKm, m.radiusKm)
	return domain.NewMatchResult(event, at, matched, distances)
}
