// Package app provides the main application structure for PiLobster.
// It coordinates storage, the agent, the cron pipeline, the session
// registry, the transports (Telegram and terminal) and the admin API.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pilobster/pilobster/internal/agent"
	"github.com/pilobster/pilobster/internal/app/builders"
	"github.com/pilobster/pilobster/internal/channels/telegram"
	"github.com/pilobster/pilobster/internal/channels/terminal"
	"github.com/pilobster/pilobster/internal/cleanup"
	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/httpapi"
	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
)

// Mode selects which chat surfaces run.
type Mode string

const (
	ModeTelegram Mode = "telegram"
	ModeTUI      Mode = "tui"
	ModeBoth     Mode = "both"
)

// ParseMode validates a --mode flag value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTelegram, ModeTUI, ModeBoth:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (expected telegram, tui or both)", s)
}

// HasTelegram reports whether the bot runs in this mode.
func (m Mode) HasTelegram() bool { return m == ModeTelegram || m == ModeBoth }

// HasTUI reports whether the terminal UI runs in this mode.
func (m Mode) HasTUI() bool { return m == ModeTUI || m == ModeBoth }

// LogOutput returns the logging output to use for mode. Console output
// would corrupt the terminal UI, so it moves to a file in the workspace.
func LogOutput(cfg *config.Config, mode Mode) string {
	out := strings.ToLower(cfg.Logging.Output)
	if mode.HasTUI() && (out == "" || out == "stdout" || out == "stderr") {
		return filepath.Join(cfg.Workspace.Path, constants.LogFileName)
	}
	return cfg.Logging.Output
}

// Options adjusts how the application is wired. Zero values select the
// production collaborators.
type Options struct {
	Mode   Mode
	UserID int64

	// Provider replaces the Ollama client.
	Provider llm.Provider
	// Source replaces the wall-clock tick source.
	Source clock.Source
	// TelegramBot replaces the Telegram API client.
	TelegramBot telegram.BotInterface
	// Registerer receives the Prometheus collectors. Defaults to a fresh
	// registry that also exports Go and process metrics.
	Registerer *prometheus.Registry
}

// App represents the main application structure.
// It holds references to all major components and manages their lifecycle.
type App struct {
	config  *config.Config
	logger  *logger.Logger
	options Options

	// Persistence and the model
	storage *builders.Storage
	agent   *agent.Agent

	// Observability
	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics

	// Scheduling and routing
	registry *registry.Registry
	cron     *builders.Cron
	reaper   *cleanup.Reaper

	// Command surface
	service *commands.Service
	router  *commands.Router

	// Transports
	telegram *telegram.Connector
	terminal *terminal.Terminal
	http     *httpapi.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger, opts Options) *App {
	if opts.Mode == "" {
		opts.Mode = ModeTelegram
	}
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		config:  cfg,
		logger:  log,
		options: opts,
	}
}

// Run initializes the application and blocks until ctx is cancelled or,
// when the terminal UI runs, until the user quits it. It always shuts down
// before returning.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		if shutdownErr := a.Shutdown(); shutdownErr != nil {
			a.logger.Error("shutdown after failed start", shutdownErr)
		}
		return err
	}

	a.logger.Info("application is running", logger.Field{Key: "mode", Value: string(a.options.Mode)})

	var runErr error
	if a.terminal != nil {
		runErr = a.terminal.Run(a.ctx)
	} else {
		<-ctx.Done()
	}

	if err := a.Shutdown(); err != nil {
		return err
	}
	return runErr
}

// Service exposes the command surface, for the CLI and tests.
func (a *App) Service() *commands.Service {
	return a.service
}

// Router exposes the chat router.
func (a *App) Router() *commands.Router {
	return a.router
}

// Registry exposes the session registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Terminal returns the terminal surface, or nil when the mode has none.
func (a *App) Terminal() *terminal.Terminal {
	return a.terminal
}

// Gatherer returns the Prometheus registry the metrics are registered in.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.promRegistry
}
