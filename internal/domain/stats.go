package domain

import (
	"sort"
)

// DefaultHotspotMinOccurrences is the occurrence count a location needs to
// qualify as a hotspot when none is requested.
const DefaultHotspotMinOccurrences = 3

// Hotspot is a coordinate reported repeatedly in the snapshot.
type Hotspot struct {
	Location    Coordinate `json:"location"`
	Occurrences int        `json:"occurrences"`
}

// Hotspots groups disasters by exact coordinate and returns every location seen
// at least minOccurrences times, most frequent first. Ties keep first-seen order.
func Hotspots(disasters []DisasterRecord, minOccurrences int) []Hotspot {
	if minOccurrences < 1 {
		minOccurrences = 1
	}

	counts := make(map[Coordinate]int)
	order := make([]Coordinate, 0)
	for i := range disasters {
		c := disasters[i].Coordinate
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	hotspots := make([]Hotspot, 0)
	for _, c := range order {
		if counts[c] >= minOccurrences {
			hotspots = append(hotspots, Hotspot{Location: c, Occurrences: counts[c]})
		}
	}
	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].Occurrences > hotspots[j].Occurrences
	})
	return hotspots
}

// Statistics summarizes a disaster snapshot.
type Statistics struct {
	Total      int            `json:"total"`
	Incidents  int            `json:"incidents"`
	Categories map[string]int `json:"categories"`
}

// Summarize counts records per category. Incidents counts distinct disaster
// IDs, since one incident can contribute several geometries.
func Summarize(disasters []DisasterRecord) Statistics {
	s := Statistics{Categories: make(map[string]int)}
	seen := make(map[string]struct{})
	for i := range disasters {
		s.Total++
		category := disasters[i].Category
		if category == "" {
			category = "Uncategorized"
		}
		s.Categories[category]++
		if _, ok := seen[disasters[i].ID]; !ok {
			seen[disasters[i].ID] = struct{}{}
			s.Incidents++
		}
	}
	return s
}
