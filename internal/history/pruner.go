package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes history rows older than the retention window on a cron
// schedule.
type Pruner struct {
	cron      *cron.Cron
	store     Store
	retention time.Duration
	now       func() time.Time
}

// NewPruner creates a pruner. It does nothing until Start is called.
func NewPruner(store Store, retention time.Duration) *Pruner {
	return &Pruner{
		cron:      cron.New(),
		store:     store,
		retention: retention,
		now:       time.Now,
	}
}

// Start schedules PruneOnce. schedule accepts standard cron specs and
// descriptors such as "@every 1h".
func (p *Pruner) Start(schedule string) error {
	if _, err := p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p.PruneOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	p.cron.Start()
	log.Printf("History pruner started (schedule %s, retention %s)", schedule, p.retention)
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	log.Println("History pruner stopped")
}

// PruneOnce removes rows older than the retention window.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	count, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Error pruning history: %v", err)
		return 0
	}
	if count > 0 {
		log.Printf("Pruned %d history rows older than %s", count, cutoff.Format(time.RFC3339))
	}
	return count
}
