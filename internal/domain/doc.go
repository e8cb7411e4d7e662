// Package domain models calendar events, disaster records, and the pure logic
// that matches one against the other.
//
// # Disaster Source
//
// Disaster records come from NASA's Earth Observatory Natural Event Tracker
// (EONET) v3 API, https://eonet.gsfc.nasa.gov/api/v3/events. Each feed event
// carries one or more dated GeoJSON geometries; [NormalizeDisasters] emits one
// [DisasterRecord] per geometry, all sharing the parent event ID. Points are
// taken as-is. Polygons and other shapes are reduced to the center of their
// bounding box.
//
// # Coordinates
//
// GeoJSON orders positions [lon, lat]. Everything past the feed boundary uses
// [Coordinate] with named fields, and a missing position is a nil *Coordinate,
// never the zero value.
//
// # Matching
//
// Distances are great-circle (haversine) kilometers on a sphere whose radius is
// configurable, defaulting to [EarthRadiusKm]. A disaster matches when its
// distance is strictly below the threshold. Batch windows span the earliest to
// latest event start, padded on both sides (see [DeriveWindow]).
package domain
