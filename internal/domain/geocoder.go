package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
// Coordinate is nil when the provider found nothing for the query.
type GeocodingResult struct {
	Coordinate *Coordinate
	PlaceName  string
	Confidence float64 // 0.0–1.0 provider confidence score
}

// Geocoder turns free-text place names into coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}
