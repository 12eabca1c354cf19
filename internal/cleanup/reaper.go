// Package cleanup removes cancelled jobs once their retention window has
// passed.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
)

const (
	DefaultRetention = 30 * 24 * time.Hour
	DefaultInterval  = time.Hour
)

// JobReaper deletes jobs disabled before cutoff.
type JobReaper interface {
	Reap(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls the reaper. A zero Retention disables it.
type Config struct {
	Retention time.Duration
	Interval  time.Duration
}

// Reaper runs JobReaper.Reap on an interval.
type Reaper struct {
	store   JobReaper
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReaper creates a reaper. m may be nil.
func NewReaper(store JobReaper, config Config, log *logger.Logger, m *metrics.Metrics) *Reaper {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reaper{
		store:   store,
		config:  config,
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Start runs one pass immediately, then one per interval until ctx is done
// or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	if r.config.Retention <= 0 {
		r.logger.Info("job reaper disabled")
		return nil
	}
	if r.cancel != nil {
		return fmt.Errorf("job reaper already started")
	}

	ctx, r.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(r.config.Interval)

	r.logger.Info("job reaper started",
		logger.Field{Key: "retention", Value: r.config.Retention.String()},
		logger.Field{Key: "interval", Value: r.config.Interval.String()})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		r.run(ctx)
		for {
			select {
			case <-ticker.C:
				r.run(ctx)
			case <-ctx.Done():
				r.logger.Info("job reaper stopped")
				return
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for a running pass to finish.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// RunOnce performs a single pass and returns the number of jobs deleted.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.config.Retention)
	n, err := r.store.Reap(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap jobs: %w", err)
	}
	r.metrics.RecordReaped(n)
	return n, nil
}

func (r *Reaper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	n, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.ErrorCtx(ctx, "job reaping failed", err)
		return
	}

	if n > 0 {
		r.logger.InfoCtx(ctx, fmt.Sprintf("reaped %d cancelled jobs", n),
			logger.Field{Key: "jobs_deleted", Value: n},
			logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	} else {
		r.logger.DebugCtx(ctx, "job reaping completed: nothing to delete")
	}
}
