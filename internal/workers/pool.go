package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/pilobster/pilobster/internal/logger"
)

// WorkerPool runs tasks on a fixed number of goroutines.
type WorkerPool struct {
	taskQueue chan Task
	resultCh  chan Result
	workers   int
	executors map[string]TaskExecutor
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger

	mu      sync.RWMutex
	metrics PoolMetrics
	started bool
	stopped bool
}

// NewPool creates a pool with workers goroutines and a queue of bufferSize.
func NewPool(workers int, bufferSize int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if bufferSize <= 0 {
		bufferSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		taskQueue: make(chan Task, bufferSize),
		resultCh:  make(chan Result, bufferSize),
		workers:   workers,
		executors: make(map[string]TaskExecutor),
		ctx:       ctx,
		cancel:    cancel,
		logger:    log,
	}
}

// Register binds an executor to a task type. Call before Start.
func (p *WorkerPool) Register(taskType string, exec TaskExecutor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executors[taskType] = exec
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "buffer_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task, waiting for a free slot until ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	if err := p.admit(task); err != nil {
		return err
	}

	select {
	case p.taskQueue <- task:
		p.incrementSubmitted()
		return nil
	case <-ctx.Done():
		p.incrementRejected()
		return ctx.Err()
	case <-p.ctx.Done():
		p.incrementRejected()
		return ErrPoolStopped
	}
}

// TrySubmit queues a task without waiting.
func (p *WorkerPool) TrySubmit(task Task) error {
	if err := p.admit(task); err != nil {
		return err
	}

	select {
	case p.taskQueue <- task:
		p.incrementSubmitted()
		return nil
	default:
		p.incrementRejected()
		return ErrQueueFull
	}
}

func (p *WorkerPool) admit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if _, ok := p.executors[task.Type]; !ok {
		return fmt.Errorf("unknown task type: %s", task.Type)
	}

	p.logger.Debug("task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_type", Value: task.Type})
	return nil
}

// Results streams task outcomes. Results are dropped when nobody reads and
// the buffer is full.
func (p *WorkerPool) Results() <-chan Result {
	return p.resultCh
}

// Stop cancels the pool context and waits for the workers to exit. Queued
// tasks that were not started are discarded.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	metrics := p.Metrics()
	p.logger.Info("worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: metrics.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: metrics.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: metrics.TasksFailed},
		logger.Field{Key: "tasks_dropped", Value: len(p.taskQueue)})

	close(p.resultCh)
}

// WorkerCount returns the number of worker goroutines.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the number of tasks waiting to start.
func (p *WorkerPool) QueueSize() int {
	return len(p.taskQueue)
}
