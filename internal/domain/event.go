package domain

import (
	"fmt"
	"time"
)

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
// A missing coordinate is always represented by a nil *Coordinate.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the latitude/longitude range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// BoundingBox is a location expressed as two opposite corners.
type BoundingBox struct {
	Northeast Coordinate `json:"northeast"`
	Southwest Coordinate `json:"southwest"`
}

// Center returns the per-axis arithmetic mean of the two corners.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Lat: (b.Northeast.Lat + b.Southwest.Lat) / 2,
		Lon: (b.Northeast.Lon + b.Southwest.Lon) / 2,
	}
}

// EventLocation holds whichever form of location a calendar entry carries.
// Point wins over Bounds, and Bounds wins over Text.
type EventLocation struct {
	Text   string       `json:"text,omitempty"`
	Point  *Coordinate  `json:"point,omitempty"`
	Bounds *BoundingBox `json:"bounds,omitempty"`
}

// Coordinate returns the point the location resolves to without any external
// lookup: the point itself, or the bounds center. Free-text locations return nil.
func (l EventLocation) Coordinate() *Coordinate {
	switch {
	case l.Point != nil:
		if !l.Point.Valid() {
			return nil
		}
		c := *l.Point
		return &c
	case l.Bounds != nil:
		c := l.Bounds.Center()
		if !c.Valid() {
			return nil
		}
		return &c
	default:
		return nil
	}
}

// CalendarEvent is a user's calendar entry submitted for matching. It is owned
// by the caller and never mutated by the matcher.
type CalendarEvent struct {
	ID        string        `json:"id"`
	Summary   string        `json:"summary,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Location  EventLocation `json:"location"`
}

// DisasterRecord is one geometry of one disaster reported by the feed. A single
// incident with several geometries yields several records sharing ID.
type DisasterRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	Coordinate Coordinate `json:"coordinate"`
	ObservedAt time.Time  `json:"observed_at"`
}

// MatchResult annotates a copy of an event with the disasters found near it.
// DistancesKm[i] is the distance to MatchedDisasters[i], in discovery order.
type MatchResult struct {
	Event            CalendarEvent    `json:"event"`
	Alert            bool             `json:"alert"`
	ResolvedAt       *Coordinate      `json:"resolved_at,omitempty"`
	MatchedDisasters []DisasterRecord `json:"matched_disasters"`
	DistancesKm      []float64        `json:"distances_km"`
}

// NewMatchResult builds a result whose Alert flag is derived from matches.
func NewMatchResult(event CalendarEvent, at *Coordinate, matched []DisasterRecord, distances []float64) MatchResult {
	if matched == nil {
		matched = []DisasterRecord{}
	}
	if distances == nil {
		distances = []float64{}
	}
	return MatchResult{
		Event:            event,
		Alert:            len(matched) > 0,
		ResolvedAt:       at,
		MatchedDisasters: matched,
		DistancesKm:      distances,
	}
}
