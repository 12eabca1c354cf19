// Package workers provides the bounded goroutine pool that runs job fires
// off the scheduler's tick path.
package workers

import (
	"context"
	"errors"
	"time"
)

// Task is a unit of work routed to the executor registered for Type.
type Task struct {
	ID      string
	Type    string
	Payload any
	// Context overrides the pool context for this task when set.
	Context context.Context
}

// Result is the outcome of one task.
type Result struct {
	TaskID   string
	Type     string
	Error    error
	Output   string
	Duration time.Duration
}

// PoolMetrics counts pool activity.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksRejected  uint64
	TasksCompleted uint64
	TasksFailed    uint64
	TotalDuration  time.Duration
}

// TaskExecutor runs one task type.
type TaskExecutor func(context.Context, Task) (string, error)

var (
	// ErrQueueFull is returned by TrySubmit when no queue slot is free.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolStopped is returned once Stop has been called.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

const (
	DefaultPoolSize  = 4
	DefaultQueueSize = 100
)
