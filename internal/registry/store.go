package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"spotwise-backend/internal/model"
)

// ErrClosed is returned once the store's run loop has exited.
var ErrClosed = errors.New("registry store is closed")

// UpdateFunc computes the next registry from the current one. It receives a
// private copy and may modify it. Returning an error rejects the update and
// leaves the registry unchanged.
type UpdateFunc func(spots []model.Spot) ([]model.Spot, error)

// Listener observes accepted updates. Listeners run on the store goroutine,
// so they must not call Update.
type Listener func(prev, next []model.Spot)

type request struct {
	fn     UpdateFunc
	loaded bool
	reply  chan result
}

type result struct {
	spots []model.Spot
	err   error
}

// Store is the single owner of the spot registry.
type Store struct {
	mu        sync.RWMutex
	spots     []model.Spot
	version   uint64
	loading   bool
	listeners []Listener

	updates chan request
	done    chan struct{}
}

// NewStore creates a store seeded with the initial registry. The store is in
// the loading state until MarkLoaded is called.
func NewStore(initial []model.Spot) *Store {
	return &Store{
		spots:   slices.Clone(initial),
		loading: true,
		updates: make(chan request),
		done:    make(chan struct{}),
	}
}

// Run drains the update queue until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			log.Println("Registry store shutting down.")
			return
		case req := <-s.updates:
			req.reply <- s.apply(req)
		}
	}
}

// Done is closed after Run returns.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// Update queues fn and waits for it to be applied.
func (s *Store) Update(ctx context.Context, fn UpdateFunc) ([]model.Spot, error) {
	res, err := s.send(ctx, request{fn: fn, reply: make(chan result, 1)})
	if err != nil {
		return nil, err
	}
	return res.spots, res.err
}

// MarkLoaded clears the loading flag through the update queue.
func (s *Store) MarkLoaded(ctx context.Context) error {
	_, err := s.send(ctx, request{loaded: true, reply: make(chan result, 1)})
	return err
}

func (s *Store) send(ctx context.Context, req request) (result, error) {
	select {
	case s.updates <- req:
	case <-s.done:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	// Once received, the run loop always replies before looking at ctx again.
	return <-req.reply, nil
}

func (s *Store) apply(req request) result {
	if req.loaded {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return result{}
	}

	prev := s.Snapshot()
	next, err := req.fn(slices.Clone(prev))
	if err != nil {
		return result{spots: prev, err: err}
	}
	if err := Validate(next); err != nil {
		log.Printf("Rejected registry update: %v", err)
		return result{spots: prev, err: fmt.Errorf("invalid registry update: %w", err)}
	}

	s.mu.Lock()
	s.spots = next
	s.version++
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev, next)
	}
	return result{spots: next}
}

// Snapshot returns the current registry. Callers must treat it as read-only.
func (s *Store) Snapshot() []model.Spot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spots
}

// Version counts accepted updates.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Loading reports whether the initial-load delay is still pending.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// OnChange registers a listener for accepted updates.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
