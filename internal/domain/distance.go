package domain

import "math"

// EarthRadiusKm is the mean Earth radius used when no radius is configured.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between a and b on a
// sphere of the given radius. Inputs are degrees; the result is not rounded.
func Haversine(a, b Coordinate, radiusKm float64) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h just outside [0, 1] near antipodes.
	h = math.Min(1, math.Max(0, h))
	return radiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// WithinRadius scans disasters and keeps every record strictly closer than
// thresholdKm to origin. Matches and their distances are returned as parallel
// slices in the order the records were scanned.
func WithinRadius(origin Coordinate, disasters []DisasterRecord, thresholdKm, radiusKm float64) ([]DisasterRecord, []float64) {
	matched := make([]DisasterRecord, 0)
	distances := make([]float64, 0)
	for i := range disasters {
		d := Haversine(origin, disasters[i].Coordinate, radiusKm)
		if d < thresholdKm {
			matched = append(matched, disasters[i])
			distances = append(distances, d)
		}
	}
	return matched, distances
}
