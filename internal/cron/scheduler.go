// Package cron drives stored jobs from minute ticks and runs their fires.
//
// The Scheduler evaluates one tick at a time and never waits for a fire to
// finish. Each tick is recorded before any job is marked or submitted, and a
// job is marked fired before it is submitted, so a crash at any point loses
// at most that tick's fires and never repeats one.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/schedule"
	"github.com/pilobster/pilobster/internal/store"
)

// State of the tick loop.
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateAwaitingExecutors
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateAwaitingExecutors:
		return "awaiting executors"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// JobStore is the part of store.Store the loop needs.
type JobStore interface {
	List(ctx context.Context, includeDisabled bool) ([]store.Job, error)
	MarkFired(ctx context.Context, id int64, at time.Time) (bool, error)
	LastTick(ctx context.Context) (time.Time, bool, error)
	RecordTick(ctx context.Context, t time.Time) error
}

// FireRequest is one job fire handed to an executor.
type FireRequest struct {
	ID   uuid.UUID
	Job  store.Job
	Tick clock.Tick
}

// Executor runs fires. Submit must not block on the fire itself.
type Executor interface {
	Busy(jobID int64) bool
	Submit(req FireRequest) error
}

type cachedSchedule struct {
	expr  string
	sched *schedule.Schedule
}

// Scheduler is the tick loop.
type Scheduler struct {
	store   JobStore
	exec    Executor
	source  clock.Source
	logger  *logger.Logger
	metrics *metrics.Metrics

	state atomic.Int32

	tickMu   sync.Mutex
	lastTick clock.Tick
	cache    map[int64]cachedSchedule

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a stopped scheduler. m may be nil.
func NewScheduler(st JobStore, exec Executor, source clock.Source, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		store:   st,
		exec:    exec,
		source:  source,
		logger:  log,
		metrics: m,
		cache:   make(map[int64]cachedSchedule),
	}
}

// Start loads the last evaluated tick, catches up on the most recent missed
// minute and then follows the tick source until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	if err := s.restore(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	s.catchUp(loopCtx)

	ticks := s.source.Ticks(loopCtx)
	go func() {
		defer close(s.done)
		for tick := range ticks {
			if err := s.HandleTick(loopCtx, tick); err != nil {
				s.logger.Error("tick evaluation failed", err,
					logger.Field{Key: "tick", Value: tick.String()})
			}
		}
	}()

	s.logger.Info("cron scheduler started",
		logger.Field{Key: "last_tick", Value: s.LastTick().String()},
		logger.Field{Key: "location", Value: s.source.Location().String()})
	return nil
}

// Stop ends the loop and waits for it. Fires already submitted keep running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not started")
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("cron scheduler stopped")
	return nil
}

// IsStarted reports whether the loop is running.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// State reports what the loop is doing right now.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastTick returns the most recent evaluated tick, zero before the first.
func (s *Scheduler) LastTick() clock.Tick {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.lastTick
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.SetSchedulerState(int(st))
}

func (s *Scheduler) restore(ctx context.Context) error {
	last, ok, err := s.store.LastTick(ctx)
	if err != nil {
		return fmt.Errorf("load last tick: %w", err)
	}
	if !ok {
		return nil
	}

	s.tickMu.Lock()
	s.lastTick = clock.NewTick(last, s.source.Location())
	s.tickMu.Unlock()
	return nil
}

// catchUp evaluates the current minute once when the process missed it.
// Older missed minutes are not replayed, and a first run has nothing to
// catch up on.
func (s *Scheduler) catchUp(ctx context.Context) {
	last := s.LastTick()
	if last.IsZero() {
		return
	}

	current := clock.NewTick(s.source.Now(), s.source.Location())
	if !current.After(last) {
		return
	}

	missed := int(current.Time.Sub(last.Time) / time.Minute)
	s.logger.Info("catching up missed tick",
		logger.Field{Key: "tick", Value: current.String()},
		logger.Field{Key: "last_tick", Value: last.String()},
		logger.Field{Key: "missed_minutes", Value: missed})

	if err := s.evaluate(ctx, current, "catch-up"); err != nil {
		s.logger.Error("catch-up evaluation failed", err,
			logger.Field{Key: "tick", Value: current.String()})
	}
}

// HandleTick evaluates one tick synchronously: matching jobs are marked and
// submitted, but their fires run elsewhere. Ticks at or before the last
// evaluated one are dropped.
func (s *Scheduler) HandleTick(ctx context.Context, tick clock.Tick) error {
	return s.evaluate(ctx, tick, "live")
}

func (s *Scheduler) evaluate(ctx context.Context, tick clock.Tick, kind string) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if !s.lastTick.IsZero() && !tick.After(s.lastTick) {
		s.metrics.RecordTick("stale", 0)
		s.logger.Warn("dropping stale tick",
			logger.Field{Key: "tick", Value: tick.String()},
			logger.Field{Key: "last_tick", Value: s.lastTick.String()})
		return nil
	}

	start := time.Now()
	s.setState(StateEvaluating)
	defer s.setState(StateIdle)

	if err := s.store.RecordTick(ctx, tick.Time); err != nil {
		return fmt.Errorf("record tick %s: %w", tick, err)
	}
	s.lastTick = tick

	jobs, err := s.store.List(ctx, false)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	due := s.match(jobs, tick)
	s.setState(StateAwaitingExecutors)

	for _, job := range due {
		s.fire(ctx, job, tick)
	}

	s.metrics.RecordTick(kind, time.Since(start))
	if len(due) > 0 {
		s.logger.Debug("tick evaluated",
			logger.Field{Key: "tick", Value: tick.String()},
			logger.Field{Key: "jobs", Value: len(jobs)},
			logger.Field{Key: "due", Value: len(due)})
	}
	return nil
}

// match returns the enabled jobs whose schedule covers tick and that have
// not been marked for it yet. Unparseable rows are logged and skipped.
func (s *Scheduler) match(jobs []store.Job, tick clock.Tick) []store.Job {
	seen := make(map[int64]struct{}, len(jobs))
	var due []store.Job

	for _, job := range jobs {
		seen[job.ID] = struct{}{}
		if !job.Enabled {
			continue
		}

		sched, err := s.scheduleFor(job)
		if err != nil {
			s.logger.Warn("skipping job with unparseable schedule",
				logger.Field{Key: "job_id", Value: job.ID},
				logger.Field{Key: "schedule", Value: job.Schedule},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		if !sched.Matches(tick.Time) || job.FiredAt(tick.Time) {
			continue
		}
		due = append(due, job)
	}

	for id := range s.cache {
		if _, ok := seen[id]; !ok {
			delete(s.cache, id)
		}
	}
	return due
}

func (s *Scheduler) scheduleFor(job store.Job) (*schedule.Schedule, error) {
	if c, ok := s.cache[job.ID]; ok && c.expr == job.Schedule {
		return c.sched, nil
	}
	sched, err := schedule.Parse(job.Schedule)
	if err != nil {
		return nil, err
	}
	s.cache[job.ID] = cachedSchedule{expr: job.Schedule, sched: sched}
	return sched, nil
}

func (s *Scheduler) fire(ctx context.Context, job store.Job, tick clock.Tick) {
	fields := []logger.Field{
		{Key: "job_id", Value: job.ID},
		{Key: "tick", Value: tick.String()},
	}

	if s.exec.Busy(job.ID) {
		s.metrics.RecordFire("skipped")
		s.logger.Warn("skipped fire, previous execution still running", fields...)
		return
	}

	marked, err := s.store.MarkFired(ctx, job.ID, tick.Time)
	if err != nil {
		s.metrics.RecordFire("rejected")
		s.logger.Error("failed to mark job fired", err, fields...)
		return
	}
	if !marked {
		s.metrics.RecordFire("duplicate")
		s.logger.Debug("job already fired for tick", fields...)
		return
	}

	req := FireRequest{ID: uuid.New(), Job: job, Tick: tick}
	if err := s.exec.Submit(req); err != nil {
		outcome := "rejected"
		if errors.Is(err, ErrBusy) {
			outcome = "skipped"
		}
		s.metrics.RecordFire(outcome)
		s.logger.Error("failed to submit fire", err, fields...)
		return
	}

	s.metrics.RecordFire("submitted")
	s.logger.Info("job fired", append(fields, logger.Field{Key: "fire_id", Value: req.ID.String()})...)
}
