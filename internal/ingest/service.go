// Package ingest runs one detection batch through the pipeline:
// detect, adapt, reconcile, commit.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/model"
	"spotwise-backend/internal/reconcile"
	"spotwise-backend/internal/registry"
	"spotwise-backend/internal/stats"
)

// Detector submits an image to the detection service.
type Detector interface {
	Detect(ctx context.Context, img detect.Image) (detect.Result, error)
}

// Recorder persists a summary of each committed ingestion.
type Recorder interface {
	RecordSnapshot(ctx context.Context, snap model.OccupancySnapshot) error
}

// Origin tells where a batch came from.
type Origin string

const (
	OriginCapture Origin = "capture"
	OriginUpload  Origin = "upload"
)

// Batch is an adapted detection result that has not touched the registry yet.
type Batch struct {
	Spots      []model.Spot
	Skipped    []detect.RecordError
	ObservedAt time.Time
}

// Report summarizes one ingestion attempt.
type Report struct {
	Origin              Origin      `json:"origin"`
	At                  time.Time   `json:"at"`
	Detected            int         `json:"detected"`
	Filler              int         `json:"filler"`
	Skipped             int         `json:"skipped"`
	Total               int         `json:"total"`
	DroppedReservations int         `json:"droppedReservations"`
	Stats               model.Stats `json:"stats"`
	Err                 string      `json:"error,omitempty"`
}

// Service wires the detection client to the registry.
type Service struct {
	detector Detector
	adapter  *detect.Adapter
	engine   *reconcile.Engine
	store    *registry.Store
	recorder Recorder
	now      func() time.Time

	mu   sync.RWMutex
	last *Report
}

// NewService creates an ingestion service. recorder may be nil.
func NewService(detector Detector, adapter *detect.Adapter, engine *reconcile.Engine, store *registry.Store, recorder Recorder) *Service {
	return &Service{
		detector: detector,
		adapter:  adapter,
		engine:   engine,
		store:    store,
		recorder: recorder,
		now:      time.Now,
	}
}

// Detect calls the detection service and adapts its answer. The registry is
// not modified.
func (s *Service) Detect(ctx context.Context, img detect.Image) (Batch, error) {
	res, err := s.detector.Detect(ctx, img)
	if err != nil {
		return Batch{}, fmt.Errorf("detection failed: %w", err)
	}
	spots, skipped := s.adapter.Ingest(res)
	return Batch{Spots: spots, Skipped: skipped, ObservedAt: s.now().UTC()}, nil
}

// Commit reconciles batch into the registry as a single update.
func (s *Service) Commit(ctx context.Context, batch Batch, origin Origin) (Report, error) {
	var outcome reconcile.Outcome
	next, err := s.store.Update(ctx, func(current []model.Spot) ([]model.Spot, error) {
		outcome = s.engine.Reconcile(batch.Spots, current)
		return outcome.Spots, nil
	})
	if err != nil {
		err = fmt.Errorf("failed to commit detection batch: %w", err)
		s.fail(origin, err)
		return Report{}, err
	}

	report := Report{
		Origin:              origin,
		At:                  batch.ObservedAt,
		Detected:            outcome.Detected,
		Filler:              outcome.Filler,
		Skipped:             len(batch.Skipped),
		Total:               len(next),
		DroppedReservations: outcome.DroppedReservations,
		Stats:               stats.Compute(next),
	}
	if report.At.IsZero() {
		report.At = s.now().UTC()
	}
	s.setLast(report)
	log.Printf("Ingested %s batch: %d detected, %d filler, %d skipped, %d%% occupied",
		origin, report.Detected, report.Filler, report.Skipped, report.Stats.OccupancyRate)

	s.record(ctx, report)
	return report, nil
}

// Submit runs Detect then Commit. A detection failure leaves the registry
// unchanged.
func (s *Service) Submit(ctx context.Context, img detect.Image, origin Origin) (Report, error) {
	batch, err := s.Detect(ctx, img)
	if err != nil {
		s.fail(origin, err)
		return Report{}, err
	}
	return s.Commit(ctx, batch, origin)
}

// LastReport returns the most recent attempt, failed or not.
func (s *Service) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// Fail records a failed attempt that never reached Commit.
func (s *Service) Fail(origin Origin, err error) {
	s.fail(origin, err)
}

func (s *Service) fail(origin Origin, err error) {
	log.Printf("Ingestion from %s failed: %v", origin, err)
	s.setLast(Report{Origin: origin, At: s.now().UTC(), Err: err.Error()})
}

func (s *Service) setLast(r Report) {
	s.mu.Lock()
	s.last = &r
	s.mu.Unlock()
}

func (s *Service) record(ctx context.Context, r Report) {
	if s.recorder == nil {
		return
	}
	snap := model.OccupancySnapshot{
		ObservedAt:    r.At,
		Source:        string(r.Origin),
		Total:         r.Total,
		Occupied:      r.Stats.Occupied,
		Reserved:      r.Stats.Reserved,
		Available:     r.Stats.Available,
		OccupancyRate: r.Stats.OccupancyRate,
		Detected:      r.Detected,
		Filler:        r.Filler,
		Skipped:       r.Skipped,
	}
	if err := s.recorder.RecordSnapshot(context.WithoutCancel(ctx), snap); err != nil {
		log.Printf("Warning: failed to record occupancy snapshot: %v", err)
	}
}
