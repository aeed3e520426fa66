// Package history keeps an append-only log of occupancy snapshots and
// reservation operations. The live registry is never rebuilt from it.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"spotwise-backend/internal/model"
)

// Store defines the interface for all history database operations.
type Store interface {
	RecordSnapshot(ctx context.Context, snap model.OccupancySnapshot) error
	RecordReservationEvent(ctx context.Context, ev model.ReservationEvent) error
	ListSnapshots(ctx context.Context, limit int) ([]model.OccupancySnapshot, error)
	ListReservationEvents(ctx context.Context, spotID string, limit int) ([]model.ReservationEvent, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed history store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) RecordSnapshot(ctx context.Context, snap model.OccupancySnapshot) error {
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return fmt.Errorf("failed to record occupancy snapshot: %w", err)
	}
	return nil
}

func (s *gormStore) RecordReservationEvent(ctx context.Context, ev model.ReservationEvent) error {
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("failed to record reservation event for spot %s: %w", ev.SpotID, err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (s *gormStore) ListSnapshots(ctx context.Context, limit int) ([]model.OccupancySnapshot, error) {
	var snaps []model.OccupancySnapshot
	if err := s.db.WithContext(ctx).
		Order("observed_at DESC").
		Limit(limit).
		Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list occupancy snapshots: %w", err)
	}
	return snaps, nil
}

// ListReservationEvents returns the most recent events, newest first. An empty
// spotID lists events for every spot.
func (s *gormStore) ListReservationEvents(ctx context.Context, spotID string, limit int) ([]model.ReservationEvent, error) {
	q := s.db.WithContext(ctx).Order("occurred_at DESC").Limit(limit)
	if spotID != "" {
		q = q.Where("spot_id = ?", spotID)
	}

	var events []model.ReservationEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservation events: %w", err)
	}
	return events, nil
}

// PruneBefore deletes snapshots and events older than cutoff and returns the
// number of rows removed.
func (s *gormStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("observed_at < ?", cutoff).Delete(&model.OccupancySnapshot{})
		if res.Error != nil {
			return fmt.Errorf("failed to prune occupancy snapshots: %w", res.Error)
		}
		removed += res.RowsAffected

		res = tx.Where("occurred_at < ?", cutoff).Delete(&model.ReservationEvent{})
		if res.Error != nil {
			return fmt.Errorf("failed to prune reservation events: %w", res.Error)
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
