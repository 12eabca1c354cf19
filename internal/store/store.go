// Package store is the durable job store backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/schedule"
)

const (
	stateLastTick = "last_tick"
	taskLabelLen  = 50
)

const jobColumns = `id, scope, creator, schedule, task, message, enabled, created_at, disabled_at, last_fired_at`

// Store persists jobs and scheduler bookkeeping. The underlying handle has a
// single connection, so writes are serialized and durable when a call returns.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	now    func() time.Time
}

// New wraps an opened database (see storage.Open).
func New(db *sql.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log, now: time.Now}
}

// Create validates the schedule and stores an enabled job. Invalid schedules
// return *schedule.InvalidScheduleError and nothing is written.
func (s *Store) Create(ctx context.Context, job NewJob) (Job, error) {
	parsed, err := schedule.Parse(job.Schedule)
	if err != nil {
		return Job{}, err
	}

	message := strings.TrimSpace(job.Message)
	if message == "" {
		return Job{}, fmt.Errorf("job message is empty")
	}

	scope := job.Scope
	if scope == "" {
		scope = ScopeAll
	}
	task := strings.TrimSpace(job.Task)
	if task == "" {
		task = TaskLabel(message)
	}

	created := s.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cron_jobs (scope, creator, schedule, task, message, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		scope, job.Creator, parsed.String(), task, message, created.Unix())
	if err != nil {
		return Job{}, &StoreWriteError{Op: "create", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Job{}, &StoreWriteError{Op: "create", Err: err}
	}

	s.logger.InfoCtx(ctx, "job created",
		logger.Field{Key: "job_id", Value: id},
		logger.Field{Key: "schedule", Value: parsed.String()},
		logger.Field{Key: "scope", Value: scope})

	return Job{
		ID:        id,
		Scope:     scope,
		Creator:   job.Creator,
		Schedule:  parsed.String(),
		Task:      task,
		Message:   message,
		Enabled:   true,
		CreatedAt: created,
	}, nil
}

// List returns jobs ordered by id.
func (s *Store) List(ctx context.Context, includeDisabled bool) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM cron_jobs`
	if !includeDisabled {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Get returns one job or *JobNotFoundError.
func (s *Store) Get(ctx context.Context, id int64) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM cron_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, &JobNotFoundError{ID: id}
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return job, nil
}

// Disable soft-disables a job. Disabling twice keeps the first timestamp.
func (s *Store) Disable(ctx context.Context, id int64) error {
	now := s.now().UTC().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE cron_jobs SET enabled = 0, disabled_at = COALESCE(disabled_at, ?) WHERE id = ?`, now, id)
	if err != nil {
		return &StoreWriteError{Op: "disable", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &StoreWriteError{Op: "disable", Err: err}
	}
	if n == 0 {
		return &JobNotFoundError{ID: id}
	}

	s.logger.InfoCtx(ctx, "job disabled", logger.Field{Key: "job_id", Value: id})
	return nil
}

// MarkFired records that the job fired for tick at. It reports false, without
// writing, when the job was already marked for that tick or a later one, or
// when the job is unknown.
func (s *Store) MarkFired(ctx context.Context, id int64, at time.Time) (bool, error) {
	ts := at.Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE cron_jobs SET last_fired_at = ?
		 WHERE id = ? AND (last_fired_at IS NULL OR last_fired_at < ?)`, ts, id, ts)
	if err != nil {
		return false, &StoreWriteError{Op: "mark fired", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, &StoreWriteError{Op: "mark fired", Err: err}
	}
	return n > 0, nil
}

// CountActive returns the number of enabled jobs.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cron_jobs WHERE enabled = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

// Reap deletes jobs disabled before cutoff and returns how many were removed.
func (s *Store) Reap(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cron_jobs WHERE enabled = 0 AND disabled_at IS NOT NULL AND disabled_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, &StoreWriteError{Op: "reap", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StoreWriteError{Op: "reap", Err: err}
	}
	return n, nil
}

// LastTick returns the most recent tick the scheduler recorded.
func (s *Store) LastTick(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM scheduler_state WHERE key = ?`, stateLastTick).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last tick: %w", err)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last tick %q: %w", value, err)
	}
	return t, true, nil
}

// RecordTick persists t as the last evaluated tick.
func (s *Store) RecordTick(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduler_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		stateLastTick, t.UTC().Format(time.RFC3339))
	if err != nil {
		return &StoreWriteError{Op: "record tick", Err: err}
	}
	return nil
}

// TaskLabel shortens a trigger message to a list label.
func TaskLabel(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= taskLabelLen {
		return string(runes)
	}
	return string(runes[:taskLabelLen]) + "..."
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job        Job
		enabled    int
		created    int64
		disabledAt sql.NullInt64
		lastFired  sql.NullInt64
	)

	if err := row.Scan(&job.ID, &job.Scope, &job.Creator, &job.Schedule, &job.Task, &job.Message,
		&enabled, &created, &disabledAt, &lastFired); err != nil {
		return Job{}, err
	}

	job.Enabled = enabled == 1
	job.CreatedAt = time.Unix(created, 0).UTC()
	if disabledAt.Valid {
		t := time.Unix(disabledAt.Int64, 0).UTC()
		job.DisabledAt = &t
	}
	if lastFired.Valid {
		t := time.Unix(lastFired.Int64, 0).UTC()
		job.LastFiredAt = &t
	}
	return job, nil
}
