package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
	"github.com/pilobster/pilobster/internal/workers"
)

// TaskTypeFire is the worker pool task type for job fires.
const TaskTypeFire = "cron_fire"

const (
	DefaultFireTimeout = 120 * time.Second
	recentReports      = 20
)

// ErrBusy is returned by Submit while the job's previous fire is running.
var ErrBusy = errors.New("job execution still in progress")

// Fire statuses.
const (
	StatusSuccess     = "success"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Generator produces the reply for a job message.
type Generator interface {
	Fire(ctx context.Context, prompt string) (string, error)
}

// Conversations records fire output in session histories.
type Conversations interface {
	Append(ctx context.Context, key string, turn memory.Turn) error
}

// Sessions fans fire output out to attached sessions.
type Sessions interface {
	Broadcast(ctx context.Context, msg registry.Message, scope registry.Scope) registry.Report
	Lineages(scope registry.Scope) []string
}

// FireReport is the outcome of one fire.
type FireReport struct {
	FireID     string
	JobID      int64
	Task       string
	Tick       string
	Status     string
	Error      string
	Delivered  int
	Failed     int
	Duration   time.Duration
	FinishedAt time.Time
}

type ExecutorConfig struct {
	FireTimeout time.Duration
	// Model labels inference errors.
	Model string
}

// FireExecutor runs fires on the worker pool, at most one per job at a time.
type FireExecutor struct {
	cfg      ExecutorConfig
	pool     *workers.WorkerPool
	gen      Generator
	convs    Conversations
	sessions Sessions
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[int64]string
	recent   []FireReport
}

// NewExecutor registers the fire task type on pool. m may be nil.
func NewExecutor(cfg ExecutorConfig, pool *workers.WorkerPool, gen Generator, convs Conversations, sessions Sessions, log *logger.Logger, m *metrics.Metrics) *FireExecutor {
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = DefaultFireTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &FireExecutor{
		cfg:      cfg,
		pool:     pool,
		gen:      gen,
		convs:    convs,
		sessions: sessions,
		logger:   log,
		metrics:  m,
		now:      time.Now,
		inFlight: make(map[int64]string),
	}
	pool.Register(TaskTypeFire, e.run)
	return e
}

// Busy reports whether jobID has a fire queued or running.
func (e *FireExecutor) Busy(jobID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[jobID]
	return ok
}

// InFlight returns the number of fires queued or running.
func (e *FireExecutor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

// Submit queues a fire without waiting for it.
func (e *FireExecutor) Submit(req FireRequest) error {
	e.mu.Lock()
	if _, ok := e.inFlight[req.Job.ID]; ok {
		e.mu.Unlock()
		return ErrBusy
	}
	e.inFlight[req.Job.ID] = req.ID.String()
	e.mu.Unlock()

	err := e.pool.TrySubmit(workers.Task{
		ID:      req.ID.String(),
		Type:    TaskTypeFire,
		Payload: req,
	})
	if err != nil {
		e.release(req.Job.ID)
		return fmt.Errorf("submit fire for job #%d: %w", req.Job.ID, err)
	}
	return nil
}

// Recent returns the latest fire reports, newest first.
func (e *FireExecutor) Recent() []FireReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FireReport, len(e.recent))
	for i, r := range e.recent {
		out[len(e.recent)-1-i] = r
	}
	return out
}

func (e *FireExecutor) release(jobID int64) {
	e.mu.Lock()
	delete(e.inFlight, jobID)
	e.mu.Unlock()
}

func (e *FireExecutor) record(r FireReport) {
	e.mu.Lock()
	e.recent = append(e.recent, r)
	if len(e.recent) > recentReports {
		e.recent = e.recent[len(e.recent)-recentReports:]
	}
	e.mu.Unlock()
}

func (e *FireExecutor) run(ctx context.Context, task workers.Task) (string, error) {
	req, ok := task.Payload.(FireRequest)
	if !ok {
		return "", fmt.Errorf("unexpected fire payload %T", task.Payload)
	}
	defer e.release(req.Job.ID)

	report := e.execute(ctx, req)
	e.record(report)
	e.metrics.RecordExecution(report.Status, report.Duration)

	if report.Status != StatusSuccess {
		return "", errors.New(report.Error)
	}
	return fmt.Sprintf("delivered=%d failed=%d", report.Delivered, report.Failed), nil
}

func (e *FireExecutor) execute(ctx context.Context, req FireRequest) FireReport {
	job := req.Job
	start := e.now()
	report := FireReport{
		FireID: req.ID.String(),
		JobID:  job.ID,
		Task:   job.Task,
		Tick:   req.Tick.String(),
	}
	fields := []logger.Field{
		{Key: "job_id", Value: job.ID},
		{Key: "fire_id", Value: report.FireID},
		{Key: "tick", Value: report.Tick},
	}

	fireCtx, cancel := context.WithTimeout(ctx, e.cfg.FireTimeout)
	reply, err := e.gen.Fire(fireCtx, job.Message)
	cancel()

	if err != nil {
		err = llm.Classify(e.cfg.Model, err)
		report.Status = statusFor(err)
		report.Error = err.Error()
		report.Duration = e.now().Sub(start)
		report.FinishedAt = e.now()
		e.logger.Warn("job fire failed", append(fields,
			logger.Field{Key: "status", Value: report.Status},
			logger.Field{Key: "error", Value: report.Error})...)
		return report
	}

	scope, err := registry.ParseScope(job.Scope)
	if err != nil {
		e.logger.Warn("invalid job scope, delivering to all sessions",
			append(fields, logger.Field{Key: "scope", Value: job.Scope})...)
		scope = registry.ScopeAll
	}

	lineages := e.sessions.Lineages(scope)
	if len(lineages) == 0 && job.Creator != "" {
		lineages = []string{job.Creator}
	}
	for _, lineage := range lineages {
		turn := memory.Turn{Role: memory.RoleAssistant, Content: reply, Tag: memory.TagScheduled}
		if err := e.convs.Append(ctx, lineage, turn); err != nil {
			e.logger.Error("failed to record scheduled turn", err,
				append(fields, logger.Field{Key: "lineage", Value: lineage})...)
		}
	}

	rep := e.sessions.Broadcast(ctx, registry.Message{
		Text:  reply,
		Tag:   memory.TagScheduled,
		JobID: job.ID,
	}, scope)

	report.Status = StatusSuccess
	report.Delivered = rep.Delivered
	report.Failed = len(rep.Failed)
	report.Duration = e.now().Sub(start)
	report.FinishedAt = e.now()

	e.logger.Info("job fire completed", append(fields,
		logger.Field{Key: "scope", Value: scope.String()},
		logger.Field{Key: "delivered", Value: rep.Delivered},
		logger.Field{Key: "skipped", Value: rep.Skipped},
		logger.Field{Key: "failed", Value: len(rep.Failed)},
		logger.Field{Key: "duration_ms", Value: report.Duration.Milliseconds()})...)
	return report
}

func statusFor(err error) string {
	var (
		timeoutErr     *llm.InferenceTimeoutError
		unavailableErr *llm.InferenceUnavailableError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return StatusTimeout
	case errors.As(err, &unavailableErr):
		return StatusUnavailable
	default:
		return StatusError
	}
}
