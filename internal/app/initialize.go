package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pilobster/pilobster/internal/app/builders"
	"github.com/pilobster/pilobster/internal/channels/telegram"
	"github.com/pilobster/pilobster/internal/channels/terminal"
	"github.com/pilobster/pilobster/internal/cleanup"
	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/httpapi"
	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
)

const warmUpTimeout = 2 * time.Minute

// Initialize builds and starts every component the mode needs. On error
// the components started so far are left for Shutdown to stop.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already started")
	}
	if a.options.Mode.HasTelegram() && a.config.Telegram.Token == "" && a.options.TelegramBot == nil {
		return fmt.Errorf("telegram mode requires telegram.token")
	}

	// 1. Application context
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.started = true

	// 2. Database, job store, conversation memory and workspace
	st, err := builders.NewStorageBuilder(a.config, a.logger).Build(a.ctx)
	if err != nil {
		return err
	}
	a.storage = st

	// 3. Metrics
	a.promRegistry = a.options.Registerer
	if a.promRegistry == nil {
		a.promRegistry = prometheus.NewRegistry()
		a.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.metrics = metrics.New(constants.AppName, a.promRegistry)

	// 4. Model provider and agent
	provider := a.options.Provider
	if provider == nil {
		provider = builders.NewLLMBuilder(a.config, a.logger).Build()
	}
	a.agent, err = builders.NewAgentBuilder(a.config, a.logger, provider, st).Build()
	if err != nil {
		return err
	}

	// 5. Session registry
	a.registry = registry.New(registry.Config{
		SendTimeout: time.Duration(a.config.Telegram.SendTimeoutSeconds) * time.Second,
	}, a.logger, a.metrics)

	// 6. Cron pipeline
	a.cron, err = builders.NewCronBuilder(a.config, a.logger, a.metrics).
		Build(st, a.agent, a.registry, a.options.Source)
	if err != nil {
		return err
	}

	// 7. Command surface
	pinger, _ := provider.(commands.ModelPinger)
	a.service = commands.NewService(commands.ServiceConfig{
		Model:         a.agent.Model(),
		Host:          a.config.Ollama.Host,
		ContextLength: a.config.Ollama.ContextLength,
		DefaultScope:  a.config.Scheduler.DefaultScope,
	}, commands.ServiceDeps{
		Store:     st.Store,
		Scheduler: a.cron.Scheduler,
		Fires:     a.cron.Executor,
		Sessions:  a.registry,
		Model:     pinger,
		Workspace: st.Workspace,
		Logger:    a.logger,
	})
	a.router = commands.NewRouter(a.service, a.agent, st.Memory, st.Workspace, a.logger, a.metrics)

	// 8. Scheduler and reaper
	if a.config.Scheduler.IsEnabled() {
		if err := a.cron.Scheduler.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start cron scheduler: %w", err)
		}
	} else {
		a.logger.Info("cron scheduler disabled")
	}

	a.reaper = cleanup.NewReaper(st.Store, cleanup.Config{
		Retention: a.config.RetentionWindow(),
		Interval:  time.Duration(a.config.Scheduler.ReapIntervalMinutes) * time.Minute,
	}, a.logger, a.metrics)
	if err := a.reaper.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start job reaper: %w", err)
	}

	// 9. Admin API
	if a.config.HTTP.Enabled {
		a.http = httpapi.New(a.config.HTTP.Addr, a.service, a.promRegistry, a.logger)
		if err := a.http.Start(); err != nil {
			return err
		}
	}

	// 10. Transports
	if a.options.Mode.HasTelegram() {
		a.telegram = telegram.New(telegram.Config{
			Token:        a.config.Telegram.Token,
			AllowedUsers: a.config.Telegram.AllowedUsers,
			SendTimeout:  time.Duration(a.config.Telegram.SendTimeoutSeconds) * time.Second,
			PollTimeout:  a.config.Telegram.PollTimeoutSeconds,
		}, a.router, a.registry, a.logger, a.metrics)
		if a.options.TelegramBot != nil {
			a.telegram.WithBot(a.options.TelegramBot)
		}
		if err := a.telegram.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start telegram connector: %w", err)
		}
	}

	if a.options.Mode.HasTUI() {
		a.terminal = terminal.New(terminal.Config{
			UserID: a.options.UserID,
			Model:  a.agent.Model(),
		}, a.router, st.Memory, a.registry, a.logger, a.metrics)
	}

	// 11. Load the model in the background so the first reply is fast
	go a.warmUp(provider)

	a.logger.Info("application initialized",
		logger.Field{Key: "mode", Value: string(a.options.Mode)},
		logger.Field{Key: "model", Value: a.agent.Model()},
		logger.Field{Key: "scheduler", Value: a.config.Scheduler.IsEnabled()},
		logger.Field{Key: "http", Value: a.config.HTTP.Enabled})
	return nil
}

func (a *App) warmUp(provider llm.Provider) {
	ctx, cancel := context.WithTimeout(a.ctx, warmUpTimeout)
	defer cancel()

	if err := a.agent.WarmUp(ctx); err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("model warm-up failed",
				logger.Field{Key: "model", Value: provider.GetDefaultModel()},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return
	}
	a.logger.Debug("model warm-up finished", logger.Field{Key: "model", Value: a.agent.Model()})
}
