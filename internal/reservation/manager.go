// Package reservation implements the reserve/cancel state machine over single
// registry records.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"spotwise-backend/config"
	"spotwise-backend/internal/model"
	"spotwise-backend/internal/registry"
)

var (
	ErrSpotNotFound    = errors.New("spot not found")
	ErrSpotOccupied    = errors.New("spot is occupied")
	ErrSpotReserved    = errors.New("spot is already reserved")
	ErrInvalidDuration = errors.New("invalid reservation duration")
	ErrInvalidArrival  = errors.New("invalid arrival time")
)

// errUnchanged aborts an update that would not change the registry.
var errUnchanged = errors.New("unchanged")

// datetime-local form value, no seconds or zone.
const localLayout = "2006-01-02T15:04"

// EventRecorder persists reservation audit events.
type EventRecorder interface {
	RecordReservationEvent(ctx context.Context, ev model.ReservationEvent) error
}

// ReserveRequest is a user's reservation attempt.
type ReserveRequest struct {
	SpotID          string `json:"-"`
	DurationMinutes int    `json:"durationMinutes"`
	ArrivalTime     string `json:"arrivalTime"`
	UserID          string `json:"userId"`
}

// Manager applies reservation operations through the registry store.
type Manager struct {
	store       *registry.Store
	codes       *registry.CodeGenerator
	durations   []int
	defaultUser string
	recorder    EventRecorder
	now         func() time.Time
}

// NewManager creates a manager. recorder may be nil.
func NewManager(store *registry.Store, codes *registry.CodeGenerator, cfg config.ReservationConfig, recorder EventRecorder) *Manager {
	return &Manager{
		store:       store,
		codes:       codes,
		durations:   slices.Clone(cfg.Durations),
		defaultUser: cfg.DefaultUserID,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Durations lists the accepted reservation lengths in minutes.
func (m *Manager) Durations() []int {
	return slices.Clone(m.durations)
}

// Reserve attaches a new reservation to one free spot. A rejected request
// leaves the registry untouched.
func (m *Manager) Reserve(ctx context.Context, req ReserveRequest) (model.Spot, error) {
	if !slices.Contains(m.durations, req.DurationMinutes) {
		return model.Spot{}, fmt.Errorf("%w: %d minutes (allowed %v)", ErrInvalidDuration, req.DurationMinutes, m.durations)
	}
	now := m.now()
	arrival, minutePrecision, err := parseArrival(req.ArrivalTime, now.Location())
	if err != nil {
		return model.Spot{}, err
	}
	earliest := now
	if minutePrecision {
		// datetime-local cannot name the current second.
		earliest = now.Truncate(time.Minute)
	}
	if arrival.Before(earliest) {
		return model.Spot{}, fmt.Errorf("%w: %s is in the past", ErrInvalidArrival, req.ArrivalTime)
	}
	createdAt := now
	if arrival.Before(createdAt) {
		createdAt = arrival
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = m.defaultUser
	}

	var reserved model.Spot
	_, err = m.store.Update(ctx, func(spots []model.Spot) ([]model.Spot, error) {
		idx, ok := registry.Find(spots, req.SpotID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSpotNotFound, req.SpotID)
		}
		spot := spots[idx]
		if spot.IsOccupied {
			return nil, fmt.Errorf("%w: %s", ErrSpotOccupied, spot.SpotNumber)
		}
		if spot.IsReserved {
			return nil, fmt.Errorf("%w: %s", ErrSpotReserved, spot.SpotNumber)
		}

		reserved = spot.WithReservation(model.Reservation{
			Code:            m.codes.Next(),
			DurationMinutes: req.DurationMinutes,
			ArrivalTime:     arrival,
			UserID:          userID,
			CreatedAt:       createdAt,
		})
		return registry.ReplaceOne(spots, idx, reserved), nil
	})
	if err != nil {
		return model.Spot{}, err
	}

	log.Printf("Reserved spot %s (%s) for %s, code %s", reserved.ID, reserved.SpotNumber, userID, reserved.Reservation.Code)
	m.record(ctx, reserved, model.ReservationCreated, *reserved.Reservation)
	return reserved, nil
}

// Cancel clears the reservation on a spot. Cancelling an unreserved spot is a
// no-op.
func (m *Manager) Cancel(ctx context.Context, spotID string) (model.Spot, error) {
	var (
		cancelled model.Spot
		previous  model.Reservation
	)
	_, err := m.store.Update(ctx, func(spots []model.Spot) ([]model.Spot, error) {
		idx, ok := registry.Find(spots, spotID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSpotNotFound, spotID)
		}
		spot := spots[idx]
		if !spot.IsReserved {
			cancelled = spot
			return nil, errUnchanged
		}
		previous = *spot.Reservation
		cancelled = spot.WithoutReservation()
		return registry.ReplaceOne(spots, idx, cancelled), nil
	})
	if errors.Is(err, errUnchanged) {
		return cancelled, nil
	}
	if err != nil {
		return model.Spot{}, err
	}

	log.Printf("Cancelled reservation %s on spot %s (%s)", previous.Code, cancelled.ID, cancelled.SpotNumber)
	m.record(ctx, cancelled, model.ReservationCancelled, previous)
	return cancelled, nil
}

func (m *Manager) record(ctx context.Context, spot model.Spot, action model.ReservationAction, r model.Reservation) {
	if m.recorder == nil {
		return
	}
	arrival := r.ArrivalTime
	ev := model.ReservationEvent{
		OccurredAt:      m.now().UTC(),
		SpotID:          spot.ID,
		SpotNumber:      spot.SpotNumber,
		Action:          action,
		Code:            r.Code,
		DurationMinutes: r.DurationMinutes,
		ArrivalTime:     &arrival,
		UserID:          r.UserID,
	}
	if err := m.recorder.RecordReservationEvent(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("Warning: failed to record reservation event: %v", err)
	}
}

// ParseArrival accepts RFC 3339 or a datetime-local value interpreted in loc.
func ParseArrival(s string, loc *time.Location) (time.Time, error) {
	t, _, err := parseArrival(s, loc)
	return t, err
}

// parseArrival also reports whether s only had minute precision.
func parseArrival(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty", ErrInvalidArrival)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(localLayout, s, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidArrival, s)
}
