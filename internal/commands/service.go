// Package commands implements the operations users reach from any
// transport: scheduling, listing and cancelling jobs, status, and the slash
// command router that sits in front of chat.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/cron"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/registry"
	"github.com/pilobster/pilobster/internal/store"
	"github.com/pilobster/pilobster/internal/workspace"
)

// JobStore is the part of store.Store the service uses.
type JobStore interface {
	Create(ctx context.Context, job store.NewJob) (store.Job, error)
	List(ctx context.Context, includeDisabled bool) ([]store.Job, error)
	Disable(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
}

// SchedulerStatus reports the tick loop's state.
type SchedulerStatus interface {
	State() cron.State
	LastTick() clock.Tick
}

// FireHistory reports recent fire outcomes.
type FireHistory interface {
	Recent() []cron.FireReport
}

// ModelPinger checks that the model server answers.
type ModelPinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports attached sessions.
type SessionCounter interface {
	Count() int
}

// ServiceConfig carries the static facts shown in status.
type ServiceConfig struct {
	Model         string
	Host          string
	ContextLength int
	// DefaultScope applies to jobs created without an explicit scope.
	DefaultScope string
	StartedAt    time.Time
}

// ServiceDeps are the service's collaborators. Only Store is required.
type ServiceDeps struct {
	Store     JobStore
	Scheduler SchedulerStatus
	Fires     FireHistory
	Sessions  SessionCounter
	Model     ModelPinger
	Workspace *workspace.Workspace
	Logger    *logger.Logger
}

// ScheduleRequest describes a job to create.
type ScheduleRequest struct {
	Schedule string
	Message  string
	// Task is a short label; defaults to the start of Message.
	Task  string
	Scope string
	// Creator is the lineage the request came from.
	Creator string
}

// Status is a point-in-time view of the system.
type Status struct {
	Model          string
	Host           string
	ContextLength  int
	Uptime         time.Duration
	ActiveJobs     int
	Sessions       int
	SchedulerState string
	// ModelStatus is "online", "offline: <reason>" or empty when unchecked.
	ModelStatus    string
	LastTick       clock.Tick
	WorkspaceFiles int
	RecentFires    []cron.FireReport
}

const pingTimeout = 3 * time.Second

// Service is transport-agnostic.
type Service struct {
	cfg  ServiceConfig
	deps ServiceDeps
	now  func() time.Time
}

func NewService(cfg ServiceConfig, deps ServiceDeps) *Service {
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = store.ScopeAll
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Service{cfg: cfg, deps: deps, now: time.Now}
}

// CreateSchedule validates and stores a job. Invalid expressions return
// *schedule.InvalidScheduleError and nothing is stored.
func (s *Service) CreateSchedule(ctx context.Context, req ScheduleRequest) (store.Job, error) {
	scopeText := strings.TrimSpace(req.Scope)
	if scopeText == "" {
		scopeText = s.cfg.DefaultScope
	}
	scope, err := registry.ParseScope(scopeText)
	if err != nil {
		return store.Job{}, err
	}

	job, err := s.deps.Store.Create(ctx, store.NewJob{
		Scope:    scope.String(),
		Creator:  req.Creator,
		Schedule: req.Schedule,
		Task:     req.Task,
		Message:  req.Message,
	})
	if err != nil {
		s.deps.Logger.WarnCtx(ctx, "schedule rejected",
			logger.Field{Key: "schedule", Value: req.Schedule},
			logger.Field{Key: "creator", Value: req.Creator},
			logger.Field{Key: "error", Value: err.Error()})
		return store.Job{}, err
	}
	return job, nil
}

// ListJobs returns the enabled jobs ordered by id.
func (s *Service) ListJobs(ctx context.Context) ([]store.Job, error) {
	return s.deps.Store.List(ctx, false)
}

// CancelJob disables a job. Unknown ids return *store.JobNotFoundError.
// A fire already submitted for the job still completes.
func (s *Service) CancelJob(ctx context.Context, id int64) error {
	if err := s.deps.Store.Disable(ctx, id); err != nil {
		return err
	}
	s.deps.Logger.InfoCtx(ctx, "job cancelled", logger.Field{Key: "job_id", Value: id})
	return nil
}

// Status gathers the status view. Optional collaborators that are missing
// leave their fields zero.
func (s *Service) Status(ctx context.Context) (Status, error) {
	active, err := s.deps.Store.CountActive(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count jobs: %w", err)
	}

	st := Status{
		Model:         s.cfg.Model,
		Host:          s.cfg.Host,
		ContextLength: s.cfg.ContextLength,
		Uptime:        s.now().Sub(s.cfg.StartedAt).Truncate(time.Second),
		ActiveJobs:    active,
	}
	if s.deps.Sessions != nil {
		st.Sessions = s.deps.Sessions.Count()
	}
	if s.deps.Scheduler != nil {
		st.SchedulerState = s.deps.Scheduler.State().String()
		st.LastTick = s.deps.Scheduler.LastTick()
	}
	if s.deps.Fires != nil {
		st.RecentFires = s.deps.Fires.Recent()
	}
	if s.deps.Model != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := s.deps.Model.Ping(pingCtx); err != nil {
			st.ModelStatus = "offline: " + err.Error()
		} else {
			st.ModelStatus = "online"
		}
		cancel()
	}
	if s.deps.Workspace != nil {
		files, err := s.deps.Workspace.List()
		if err != nil {
			s.deps.Logger.WarnCtx(ctx, "failed to list workspace", logger.Field{Key: "error", Value: err.Error()})
		}
		st.WorkspaceFiles = len(files)
	}
	return st, nil
}
