package builders

import (
	"fmt"
	"time"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/cron"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/workers"
)

// Cron is the scheduling pipeline: tick loop, executor and the pool fires
// run on. The pool is started, the scheduler is not.
type Cron struct {
	Pool      *workers.WorkerPool
	Executor  *cron.FireExecutor
	Scheduler *cron.Scheduler
}

type CronBuilder struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCronBuilder(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *CronBuilder {
	return &CronBuilder{
		config:  cfg,
		logger:  log,
		metrics: m,
	}
}

// Build wires the pipeline. A nil source ticks on the wall clock in the
// configured offset.
func (b *CronBuilder) Build(jobs *Storage, gen cron.Generator, sessions cron.Sessions, source clock.Source) (*Cron, error) {
	if source == nil {
		loc, err := b.config.Location()
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler.utc_offset: %w", err)
		}
		source = clock.NewMinuteSource(loc)
	}

	pool := workers.NewPool(b.config.Workers.PoolSize, b.config.Workers.QueueSize, b.logger)
	exec := cron.NewExecutor(cron.ExecutorConfig{
		FireTimeout: time.Duration(b.config.Scheduler.FireTimeoutSeconds) * time.Second,
		Model:       b.config.Ollama.Model,
	}, pool, gen, jobs.Memory, sessions, b.logger, b.metrics)
	pool.Start()

	sched := cron.NewScheduler(jobs.Store, exec, source, b.logger, b.metrics)

	b.logger.Info("cron pipeline initialized",
		logger.Field{Key: "workers", Value: pool.WorkerCount()},
		logger.Field{Key: "location", Value: source.Location().String()})

	return &Cron{Pool: pool, Executor: exec, Scheduler: sched}, nil
}
