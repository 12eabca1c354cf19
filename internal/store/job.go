package store

import "time"

// ScopeAll delivers fires to every attached session.
const ScopeAll = "all"

// Job is a stored recurring trigger.
type Job struct {
	ID          int64
	Scope       string
	Creator     string
	Schedule    string
	Task        string
	Message     string
	Enabled     bool
	CreatedAt   time.Time
	DisabledAt  *time.Time
	LastFiredAt *time.Time
}

// NewJob describes a job to create. Scope defaults to ScopeAll and Task to a
// prefix of Message.
type NewJob struct {
	Scope    string
	Creator  string
	Schedule string
	Task     string
	Message  string
}

// FiredAt reports whether the job has already been marked for tick t or later.
func (j Job) FiredAt(t time.Time) bool {
	return j.LastFiredAt != nil && !j.LastFiredAt.Before(t)
}
