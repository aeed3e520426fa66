// Package registry owns the in-memory spot registry. Every mutation goes
// through a single queue drained by one goroutine.
package registry

import (
	"fmt"

	"spotwise-backend/internal/model"
)

// Find returns the index of the spot with the given id.
func Find(spots []model.Spot, id string) (int, bool) {
	for i := range spots {
		if spots[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// ReplaceOne returns a copy of spots with the record at idx replaced. The
// other records are copied unchanged.
func ReplaceOne(spots []model.Spot, idx int, spot model.Spot) []model.Spot {
	next := make([]model.Spot, len(spots))
	copy(next, spots)
	next[idx] = spot
	return next
}

// Validate checks id uniqueness and the per-spot reservation invariant.
func Validate(spots []model.Spot) error {
	seen := make(map[string]struct{}, len(spots))
	for _, s := range spots {
		if s.ID == "" {
			return fmt.Errorf("spot %q has an empty id", s.SpotNumber)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate spot id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("spot %q: %w", s.ID, err)
		}
	}
	return nil
}
