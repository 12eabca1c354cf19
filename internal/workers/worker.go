package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
)

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("worker stopping", logger.Field{Key: "worker_id", Value: id})
			return
		case task := <-p.taskQueue:
			p.processTask(id, task)
		}
	}
}

func (p *WorkerPool) processTask(workerID int, task Task) {
	start := time.Now()

	execCtx := p.ctx
	if task.Context != nil {
		execCtx = task.Context
	}

	result := p.executeTask(execCtx, task)
	result.Duration = time.Since(start)

	if result.Error != nil {
		p.incrementFailed()
	} else {
		p.incrementCompleted()
	}
	p.recordDuration(result.Duration)

	select {
	case p.resultCh <- result:
	default:
		p.logger.Debug("result dropped, nobody is reading",
			logger.Field{Key: "task_id", Value: task.ID})
	}

	p.logger.Debug("task processed",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "duration_ms", Value: result.Duration.Milliseconds()},
		logger.Field{Key: "error", Value: result.Error})
}

func (p *WorkerPool) executeTask(ctx context.Context, task Task) Result {
	result := Result{TaskID: task.ID, Type: task.Type}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	p.mu.RLock()
	exec, ok := p.executors[task.Type]
	p.mu.RUnlock()
	if !ok {
		result.Error = fmt.Errorf("unknown task type: %s", task.Type)
		return result
	}

	result.Output, result.Error = p.executeWithRecovery(ctx, task, exec)
	return result
}

// executeWithRecovery runs exec in its own goroutine so a panic becomes an
// error and a cancelled context releases the worker. The executor keeps
// running in the background until it notices ctx itself.
func (p *WorkerPool) executeWithRecovery(ctx context.Context, task Task, exec TaskExecutor) (string, error) {
	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("panic during task execution: %v", r)
				p.logger.Error("task panic recovered", out.err,
					logger.Field{Key: "task_id", Value: task.ID})
			}
			done <- out
		}()
		out.output, out.err = exec(ctx, task)
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
