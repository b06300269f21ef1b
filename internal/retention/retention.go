// Package retention runs the background history sweep: rows older than the
// age threshold or beyond the row cap are removed on a cron schedule. This
// is best-effort housekeeping, not a correctness guarantee.
package retention

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"palabre/internal/metrics"

	"github.com/adhocore/gronx"
)

type Sweeper interface {
	Sweep(maxAge time.Duration, maxRows int, now time.Time) (int, error)
}

type Config struct {
	Cron    string
	MaxAge  time.Duration
	MaxRows int
}

// Runner schedules sweeps. A tick that fires while the previous sweep is
// still running is skipped.
type Runner struct {
	store   Sweeper
	cfg     Config
	running atomic.Bool
}

func New(store Sweeper, cfg Config) (*Runner, error) {
	if !gronx.IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}
	return &Runner{store: store, cfg: cfg}, nil
}

// Run blocks until ctx is cancelled, sweeping at every cron tick.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("retention started: cron=%q maxAge=%s maxRows=%d", r.cfg.Cron, r.cfg.MaxAge, r.cfg.MaxRows)
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(r.cfg.Cron, now, false)
		if err != nil {
			return fmt.Errorf("retention next tick: %w", err)
		}

		select {
		case <-time.After(time.Until(next)):
			// Synchronous so Run never returns with a sweep still touching
			// the store; a long sweep delays the next tick instead of
			// overlapping it.
			r.sweepOnce()
		case <-ctx.Done():
			log.Println("retention stopping")
			return nil
		}
	}
}

func (r *Runner) sweepOnce() {
	if !r.running.CompareAndSwap(false, true) {
		log.Println("retention sweep still running, skipping tick")
		return
	}
	defer r.running.Store(false)

	removed, err := r.store.Sweep(r.cfg.MaxAge, r.cfg.MaxRows, time.Now())
	if err != nil {
		metrics.StoreErrors.Inc()
		log.Printf("retention sweep failed: %v", err)
		return
	}
	metrics.RetentionSweeps.Inc()
	metrics.RetentionRemoved.Add(float64(removed))
	if removed > 0 {
		log.Printf("retention sweep removed %d rows", removed)
	}
}
