package commands

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/cron"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/schedule"
	"github.com/pilobster/pilobster/internal/storage"
	"github.com/pilobster/pilobster/internal/store"
	"github.com/pilobster/pilobster/internal/workspace"
)

type fakeScheduler struct {
	state cron.State
	tick  clock.Tick
}

func (f fakeScheduler) State() cron.State    { return f.state }
func (f fakeScheduler) LastTick() clock.Tick { return f.tick }

type fakeFires []cron.FireReport

func (f fakeFires) Recent() []cron.FireReport { return f }

type fakeSessions int

func (f fakeSessions) Count() int { return int(f) }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type serviceEnv struct {
	store     *store.Store
	workspace *workspace.Workspace
	svc       *Service
}

func newServiceEnv(t *testing.T, cfg ServiceConfig) *serviceEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(context.Background(), filepath.Join(dir, "pilobster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db, logger.Nop())
	ws := workspace.New(filepath.Join(dir, "workspace"), db, logger.Nop())
	require.NoError(t, ws.EnsureDir())

	svc := NewService(cfg, ServiceDeps{Store: st, Workspace: ws})
	return &serviceEnv{store: st, workspace: ws, svc: svc}
}

func TestService_CreateSchedule(t *testing.T) {
	env := newServiceEnv(t, ServiceConfig{})
	ctx := context.Background()

	job, err := env.svc.CreateSchedule(ctx, ScheduleRequest{
		Schedule: "*/5 * * * *",
		Message:  "Tell me a joke",
		Creator:  "telegram:42",
	})
	require.NoError(t, err)
	assert.Equal(t, store.ScopeAll, job.Scope)
	assert.Equal(t, "telegram:42", job.Creator)
	assert.True(t, job.Enabled)

	jobs, err := env.svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestService_CreateScheduleDefaultScope(t *testing.T) {
	env := newServiceEnv(t, ServiceConfig{DefaultScope: "telegram"})

	job, err := env.svc.CreateSchedule(context.Background(), ScheduleRequest{
		Schedule: "0 9 * * *",
		Message:  "Morning",
	})
	require.NoError(t, err)
	assert.Equal(t, "telegram", job.Scope)

	job, err = env.svc.CreateSchedule(context.Background(), ScheduleRequest{
		Schedule: "0 9 * * *",
		Message:  "Morning",
		Scope:    "Terminal:cli",
	})
	require.NoError(t, err)
	assert.Equal(t, "terminal:cli", job.Scope)
}

func TestService_CreateScheduleRejects(t *testing.T) {
	env := newServiceEnv(t, ServiceConfig{})
	ctx := context.Background()

	_, err := env.svc.CreateSchedule(ctx, ScheduleRequest{Schedule: "61 * * * *", Message: "x"})
	var invalid *schedule.InvalidScheduleError
	assert.ErrorAs(t, err, &invalid)

	_, err = env.svc.CreateSchedule(ctx, ScheduleRequest{Schedule: "* * * * *", Message: "x", Scope: "email:me"})
	assert.Error(t, err)

	count, err := env.store.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_CancelJob(t *testing.T) {
	env := newServiceEnv(t, ServiceConfig{})
	ctx := context.Background()

	job, err := env.svc.CreateSchedule(ctx, ScheduleRequest{Schedule: "* * * * *", Message: "ping"})
	require.NoError(t, err)

	require.NoError(t, env.svc.CancelJob(ctx, job.ID))
	jobs, err := env.svc.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	err = env.svc.CancelJob(ctx, 999)
	var notFound *store.JobNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_Status(t *testing.T) {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	env := newServiceEnv(t, ServiceConfig{
		Model:         "tinyllama",
		Host:          "http://localhost:11434",
		ContextLength: 2048,
		StartedAt:     started,
	})
	tick := clock.NewTick(started.Add(5*time.Minute), time.UTC)
	env.svc.deps.Scheduler = fakeScheduler{state: cron.StateIdle, tick: tick}
	env.svc.deps.Fires = fakeFires{{JobID: 1, Status: cron.StatusSuccess, Tick: "2026-03-02 09:05"}}
	env.svc.deps.Sessions = fakeSessions(3)
	env.svc.now = func() time.Time { return started.Add(90*time.Minute + 500*time.Millisecond) }

	ctx := context.Background()
	_, err := env.svc.CreateSchedule(ctx, ScheduleRequest{Schedule: "* * * * *", Message: "ping"})
	require.NoError(t, err)
	_, err = env.workspace.Save(ctx, "a.txt", "hello", "")
	require.NoError(t, err)

	st, err := env.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tinyllama", st.Model)
	assert.Equal(t, 90*time.Minute, st.Uptime)
	assert.Equal(t, 1, st.ActiveJobs)
	assert.Equal(t, 3, st.Sessions)
	assert.Equal(t, "idle", st.SchedulerState)
	assert.Equal(t, tick, st.LastTick)
	assert.Equal(t, 1, st.WorkspaceFiles)
	require.Len(t, st.RecentFires, 1)

	text := FormatStatus(st)
	assert.Contains(t, text, "Model: `tinyllama`")
	assert.Contains(t, text, "Context: `2048` tokens")
	assert.Contains(t, text, "Uptime: `1h30m0s`")
	assert.Contains(t, text, "Sessions: `3`")
	assert.Contains(t, text, "#1 success at 2026-03-02 09:05")
}

func TestFormatStatus_LimitsFires(t *testing.T) {
	var fires []cron.FireReport
	for i := 1; i <= 8; i++ {
		fires = append(fires, cron.FireReport{JobID: int64(i), Status: cron.StatusSuccess, Tick: "t"})
	}
	text := FormatStatus(Status{Model: "m", RecentFires: fires})
	assert.Contains(t, text, "#5 success")
	assert.NotContains(t, text, "#6 success")
	assert.NotContains(t, text, "Host:")
	assert.NotContains(t, text, "Ollama:")
}

func TestService_StatusPingsModel(t *testing.T) {
	env := newServiceEnv(t, ServiceConfig{Model: "tinyllama"})
	ctx := context.Background()

	env.svc.deps.Model = fakePinger{}
	st, err := env.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "online", st.ModelStatus)
	assert.Contains(t, FormatStatus(st), "Ollama: `online`")

	env.svc.deps.Model = fakePinger{err: errors.New("connection refused")}
	st, err = env.svc.Status(ctx)
	require.NoError(t, err, "an unreachable model does not fail status")
	assert.Equal(t, "offline: connection refused", st.ModelStatus)
}
