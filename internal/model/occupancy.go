package model

import (
	"time"
)

// OccupancySnapshot is one row of the ingestion log, written after each
// committed reconciliation.
type OccupancySnapshot struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ObservedAt    time.Time `gorm:"not null;index" json:"observedAt"`
	Source        string    `gorm:"size:16;not null" json:"source"`
	Total         int       `gorm:"not null" json:"total"`
	Occupied      int       `gorm:"not null" json:"occupied"`
	Reserved      int       `gorm:"not null" json:"reserved"`
	Available     int       `gorm:"not null" json:"available"`
	OccupancyRate int       `gorm:"not null" json:"occupancyRate"`
	Detected      int       `gorm:"not null" json:"detected"`
	Filler        int       `gorm:"not null" json:"filler"`
	Skipped       int       `gorm:"not null" json:"skipped"`
}

// ReservationAction is what happened to a reservation.
type ReservationAction string

const (
	ReservationCreated   ReservationAction = "created"
	ReservationCancelled ReservationAction = "cancelled"
)

// ReservationEvent is the audit trail of reservation operations.
type ReservationEvent struct {
	ID              int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	OccurredAt      time.Time         `gorm:"not null;index" json:"occurredAt"`
	SpotID          string            `gorm:"size:64;not null;index" json:"spotId"`
	SpotNumber      string            `gorm:"size:16;not null" json:"spotNumber"`
	Action          ReservationAction `gorm:"size:16;not null" json:"action"`
	Code            string            `gorm:"size:16" json:"code"`
	DurationMinutes int               `json:"duration"`
	ArrivalTime     *time.Time        `json:"arrivalTime,omitempty"`
	UserID          string            `gorm:"size:64" json:"userId"`
}
