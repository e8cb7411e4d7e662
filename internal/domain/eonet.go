package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// RawDisaster is one event object as delivered by the EONET v3 feed.
type RawDisaster struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Categories []RawCategory `json:"categories"`
	Geometry   []RawGeometry `json:"geometry"`
}

// RawCategory is an EONET category reference.
type RawCategory struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RawGeometry is one dated GeoJSON geometry of an EONET event.
type RawGeometry struct {
	Date        time.Time        `json:"date"`
	Type        string           `json:"type"`
	Coordinates *json.RawMessage `json:"coordinates"`
}

// FeedResponse is the EONET events envelope.
type FeedResponse struct {
	Title  string        `json:"title,omitempty"`
	Events []RawDisaster `json:"events"`
}

// NormalizeDisasters flattens feed objects into one DisasterRecord per
// geometry. Geometries that cannot be decoded, or whose position falls outside
// the coordinate range, are skipped with a warning.
func NormalizeDisasters(raw []RawDisaster, logger *slog.Logger) []DisasterRecord {
	records := make([]DisasterRecord, 0, len(raw))
	for i := range raw {
		category := ""
		if len(raw[i].Categories) > 0 {
			category = raw[i].Categories[0].Title
		}

		for _, g := range raw[i].Geometry {
			coord, err := geometryCoordinate(g)
			if err != nil {
				logger.Warn("skipping disaster geometry",
					"disaster_id", raw[i].ID,
					"geometry_type", g.Type,
					"error", err,
				)
				continue
			}
			records = append(records, DisasterRecord{
				ID:         raw[i].ID,
				Title:      raw[i].Title,
				Category:   category,
				Coordinate: coord,
				ObservedAt: g.Date.UTC(),
			})
		}
	}
	return records
}

// geometryCoordinate reduces a GeoJSON geometry to one point. Points map
// directly; any other shape maps to the center of its bounds.
func geometryCoordinate(g RawGeometry) (Coordinate, error) {
	if g.Coordinates == nil {
		return Coordinate{}, fmt.Errorf("geometry has no coordinates")
	}

	gj := geojson.Geometry{Type: g.Type, Coordinates: g.Coordinates}
	t, err := gj.Decode()
	if err != nil {
		return Coordinate{}, fmt.Errorf("decode %s: %w", g.Type, err)
	}

	var c Coordinate
	switch v := t.(type) {
	case *geom.Point:
		c = Coordinate{Lat: v.Y(), Lon: v.X()}
	default:
		b := t.Bounds()
		if b.IsEmpty() {
			return Coordinate{}, fmt.Errorf("%s has empty bounds", g.Type)
		}
		c = BoundingBox{
			Northeast: Coordinate{Lat: b.Max(1), Lon: b.Max(0)},
			Southwest: Coordinate{Lat: b.Min(1), Lon: b.Min(0)},
		}.Center()
	}

	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("coordinate %s out of range", c)
	}
	return c, nil
}
