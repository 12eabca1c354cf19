package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pilobster/pilobster/internal/app"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/version"
)

type serveOptions struct {
	mode     string
	userID   int64
	logLevel string
	noBanner bool
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start PiLobster",
		Long: `Start PiLobster with the chosen chat surfaces.

  --mode telegram   Telegram bot only (default)
  --mode tui        terminal chat only
  --mode both       Telegram bot and terminal chat

The scheduler runs in every mode, and scheduled answers are delivered to
every surface that is open when a job fires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(app.ModeTelegram), "chat surfaces: telegram, tui or both")
	cmd.Flags().Int64Var(&opts.userID, "user-id", 0, "user id for the terminal conversation")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")
	cmd.Flags().BoolVar(&opts.noBanner, "no-banner", false, "do not print the startup banner")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	mode, err := app.ParseMode(opts.mode)
	if err != nil {
		return err
	}

	cfg, err := global.loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: app.LogOutput(cfg, mode),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	logger.SetDefault(log)

	if mode != app.ModeTUI && !opts.noBanner {
		printBanner(cmd.OutOrStdout())
	}

	log.Info("🚀 Starting PiLobster", append([]logger.Field{
		{Key: "version", Value: version.Version},
		{Key: "git_commit", Value: version.GitCommit},
		{Key: "config", Value: global.configPath},
		{Key: "mode", Value: string(mode)},
	}, cfg.LogFields()...)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, log, app.Options{Mode: mode, UserID: opts.userID})
	if err := application.Run(ctx); err != nil {
		log.Error("application stopped with error", err)
		return err
	}
	return nil
}
