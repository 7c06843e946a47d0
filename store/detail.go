package store

import (
	"strconv"
	"strings"

	"property-shell/models"
)

// FindByID resolves a route identifier against the loaded collection. The id
// is parsed as an integer; an unparsable id behaves as 0 and will not match.
// A miss, including a deep link before Load completes, returns
// models.ErrNotFound.
func (s *Store) FindByID(id string) (models.Property, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		n = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.properties {
		if p.ID == n {
			return p, nil
		}
	}
	return models.Property{}, models.ErrNotFound
}
