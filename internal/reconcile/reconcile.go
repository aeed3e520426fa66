// Package reconcile merges a fresh detection batch into the spot registry.
//
// The registry always keeps a fixed display size: when fewer spots are
// detected than the registry currently holds, the batch is padded with filler
// spots. Reservations held by the previous registry are not carried over.
package reconcile

import (
	"log"

	"spotwise-backend/internal/model"
	"spotwise-backend/internal/registry"
)

// FillerSource produces synthetic spots. offset is the number of real spots
// ahead of the filler.
type FillerSource interface {
	Filler(count, offset int) []model.Spot
}

// Engine applies the reconciliation policy.
type Engine struct {
	defaultCount int
	filler       FillerSource
	ids          *registry.IDGenerator
}

// NewEngine creates an engine. defaultCount is the desired size when the
// current registry is empty.
func NewEngine(defaultCount int, filler FillerSource, ids *registry.IDGenerator) *Engine {
	return &Engine{defaultCount: defaultCount, filler: filler, ids: ids}
}

// Outcome describes one reconciliation.
type Outcome struct {
	Spots               []model.Spot
	Desired             int
	Detected            int
	Filler              int
	DroppedReservations int
}

// DesiredCount is the size the next registry must have.
func (e *Engine) DesiredCount(current []model.Spot) int {
	if len(current) > 0 {
		return len(current)
	}
	return e.defaultCount
}

// Reconcile builds the next registry from detected and the current registry.
func (e *Engine) Reconcile(detected, current []model.Spot) Outcome {
	desired := e.DesiredCount(current)

	out := Outcome{Desired: desired, Detected: len(detected)}
	for _, s := range current {
		if s.IsReserved {
			out.DroppedReservations++
		}
	}
	if out.DroppedReservations > 0 {
		log.Printf("Reconciliation drops %d reservation(s) held by the previous registry", out.DroppedReservations)
	}

	next := make([]model.Spot, 0, max(desired, len(detected)))
	next = append(next, detected...)
	if missing := desired - len(detected); missing > 0 {
		next = append(next, e.filler.Filler(missing, len(detected))...)
		out.Filler = missing
	}

	out.Spots = e.ensureUnique(next)
	return out
}

// ensureUnique regenerates any id already used earlier in spots.
func (e *Engine) ensureUnique(spots []model.Spot) []model.Spot {
	seen := make(map[string]struct{}, len(spots))
	for i := range spots {
		id := spots[i].ID
		_, dup := seen[id]
		for id == "" || dup {
			id = e.ids.Next(string(spots[i].Source))
			_, dup = seen[id]
		}
		if id != spots[i].ID {
			log.Printf("Spot id %q collided; reassigned to %q", spots[i].ID, id)
			spots[i].ID = id
		}
		seen[id] = struct{}{}
	}
	return spots
}
