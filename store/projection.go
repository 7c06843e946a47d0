package store

import (
	"sort"
	"strings"

	"property-shell/models"
)

// Project derives the displayed list from the raw collection and the search
// term: case-insensitive substring match on location, then a stable sort by
// rating descending. An empty or whitespace term returns the collection as
// is. Deterministic for equal inputs.
func Project(properties []models.Property, term string) []models.Property {
	t := strings.ToLower(strings.TrimSpace(term))

	out := make([]models.Property, 0, len(properties))
	if t == "" {
		return append(out, properties...)
	}

	for _, p := range properties {
		if strings.Contains(strings.ToLower(p.Location), t) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	return out
}
