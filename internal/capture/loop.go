package capture

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/ingest"
)

// State is the loop's lifecycle stage.
type State string

const (
	StateNotReady  State = "not_ready"
	StateReady     State = "ready"
	StateCapturing State = "capturing"
)

// Submitter is the ingestion pipeline as seen by the loop.
type Submitter interface {
	Detect(ctx context.Context, img detect.Image) (ingest.Batch, error)
	Commit(ctx context.Context, batch ingest.Batch, origin ingest.Origin) (ingest.Report, error)
	Fail(origin ingest.Origin, err error)
}

// Ticker is the part of time.Ticker the loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Status is a point-in-time view of the loop.
type Status struct {
	State     State  `json:"state"`
	Submitted uint64 `json:"submitted"`
	Skipped   uint64 `json:"skipped"`
	Discarded uint64 `json:"discarded"`
}

// Loop samples a frame every interval once the source is ready and submits it
// without waiting for the previous submission.
type Loop struct {
	source    FrameSource
	sink      Submitter
	interval  time.Duration
	newTicker func(time.Duration) Ticker

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	cancel  context.CancelFunc

	// Held for reading across the stopped check and Commit.
	commitMu sync.RWMutex

	run      sync.WaitGroup
	inflight sync.WaitGroup

	submitted atomic.Uint64
	skipped   atomic.Uint64
	discarded atomic.Uint64
}

// NewLoop creates a loop. Nothing happens until Start.
func NewLoop(source FrameSource, sink Submitter, interval time.Duration) *Loop {
	return &Loop{
		source:    source,
		sink:      sink,
		interval:  interval,
		newTicker: newTimeTicker,
		state:     StateNotReady,
	}
}

// Start waits for readiness in the background, then arms the ticker.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return errors.New("capture loop already started")
	}
	l.started = true

	ctx, l.cancel = context.WithCancel(ctx)
	l.run.Add(1)
	go l.loop(ctx)
	log.Printf("Capture loop started (interval %s)", l.interval)
	return nil
}

// Stop releases the ticker and the readiness wait. No tick fires and no
// commit starts after Stop returns. In-flight detections keep running but
// their results are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.run.Wait()
	l.commitMu.Lock()
	l.commitMu.Unlock()
	l.setState(StateNotReady)
	log.Printf("Capture loop stopped (%d submitted, %d discarded)", l.submitted.Load(), l.discarded.Load())
}

// Wait blocks until every in-flight submission has resolved.
func (l *Loop) Wait() {
	l.inflight.Wait()
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) Status() Status {
	return Status{
		State:     l.State(),
		Submitted: l.submitted.Load(),
		Skipped:   l.skipped.Load(),
		Discarded: l.discarded.Load(),
	}
}

func (l *Loop) loop(ctx context.Context) {
	defer l.run.Done()

	select {
	case <-ctx.Done():
		return
	case <-l.source.Ready():
	}
	l.setState(StateReady)

	ticker := l.newTicker(l.interval)
	defer ticker.Stop()
	l.setState(StateCapturing)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	frame, err := l.source.Frame()
	if err != nil {
		l.skipped.Add(1)
		log.Printf("Capture tick skipped: %v", err)
		return
	}

	l.submitted.Add(1)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		l.submit(context.WithoutCancel(ctx), frame)
	}()
}

func (l *Loop) submit(ctx context.Context, frame Frame) {
	batch, err := l.sink.Detect(ctx, frame.Image)
	if l.isStopped() {
		l.discard(frame)
		return
	}
	if err != nil {
		l.sink.Fail(ingest.OriginCapture, err)
		return
	}

	l.commitMu.RLock()
	defer l.commitMu.RUnlock()
	if l.isStopped() {
		l.discard(frame)
		return
	}
	if _, err := l.sink.Commit(ctx, batch, ingest.OriginCapture); err != nil {
		log.Printf("Frame %d (%s) not committed: %v", frame.Seq, frame.TraceID, err)
	}
}

func (l *Loop) discard(frame Frame) {
	l.discarded.Add(1)
	log.Printf("Discarding frame %d (%s): capture loop stopped", frame.Seq, frame.TraceID)
}

func (l *Loop) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}
