package model

import (
	"errors"
	"time"
)

// Category is the kind of parking spot.
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryHandicap Category = "handicap"
	CategoryElectric Category = "electric"
)

// Source records where a spot record came from.
type Source string

const (
	SourceMock     Source = "mock"
	SourceDetected Source = "detected"
)

// Location is a 2-D layout coordinate. Mock spots use grid cells, detected
// spots use source-image pixels.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Reservation is the claim attached to a reserved spot.
type Reservation struct {
	Code            string    `json:"code"`
	DurationMinutes int       `json:"duration"`
	ArrivalTime     time.Time `json:"arrivalTime"`
	UserID          string    `json:"userId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Spot is one parking space record held by the registry.
type Spot struct {
	ID          string       `json:"id"`
	SpotNumber  string       `json:"spotNumber"`
	IsOccupied  bool         `json:"isOccupied"`
	IsReserved  bool         `json:"isReserved"`
	Type        Category     `json:"type"`
	Location    Location     `json:"location"`
	Source      Source       `json:"source"`
	Reservation *Reservation `json:"reservation,omitempty"`
}

var ErrReservationMismatch = errors.New("isReserved and reservation payload disagree")

// NewSpot builds an unreserved spot.
func NewSpot(id, spotNumber string, category Category, loc Location, source Source, occupied bool) Spot {
	return Spot{
		ID:         id,
		SpotNumber: spotNumber,
		IsOccupied: occupied,
		Type:       category,
		Location:   loc,
		Source:     source,
	}
}

// Available reports whether the spot is neither occupied nor reserved.
func (s Spot) Available() bool {
	return !s.IsOccupied && !s.IsReserved
}

// WithReservation returns a copy of s holding r.
func (s Spot) WithReservation(r Reservation) Spot {
	s.IsReserved = true
	s.Reservation = &r
	return s
}

// WithoutReservation returns a copy of s with the reservation cleared.
func (s Spot) WithoutReservation() Spot {
	s.IsReserved = false
	s.Reservation = nil
	return s
}

// Validate checks the reservation flag/payload invariant.
func (s Spot) Validate() error {
	if s.IsReserved != (s.Reservation != nil) {
		return ErrReservationMismatch
	}
	return nil
}
