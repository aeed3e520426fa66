package hub

import (
	"encoding/json"
	"log"
	"time"

	"spotwise-backend/internal/model"
	"spotwise-backend/internal/stats"
)

// TypeRegistryUpdated is the only server-to-client message type.
const TypeRegistryUpdated = "registry.updated"

// Update carries the full registry and its derived stats.
type Update struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Spots     []model.Spot `json:"spots"`
	Stats     model.Stats  `json:"stats"`
}

// NewUpdate builds the message for spots.
func NewUpdate(spots []model.Spot) Update {
	if spots == nil {
		spots = []model.Spot{}
	}
	return Update{
		Type:      TypeRegistryUpdated,
		Timestamp: time.Now().UTC(),
		Spots:     spots,
		Stats:     stats.Compute(spots),
	}
}

// OnRegistryChange is a registry listener that broadcasts the new registry.
func (h *Hub) OnRegistryChange(_, next []model.Spot) {
	msg, err := json.Marshal(NewUpdate(next))
	if err != nil {
		log.Printf("Error encoding registry update: %v", err)
		return
	}
	h.Broadcast(msg)
}
