package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pilobster/pilobster/internal/app/builders"
	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/logger"
)

// The cron commands edit the job table directly. A running server picks
// changes up on its next tick.
func newCronCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled tasks",
	}

	var scope, task string
	addCmd := &cobra.Command{
		Use:   "add <schedule> <message>",
		Short: "Add a scheduled task",
		Example: `  pilobster cron add "0 9 * * *" "Tell me a fun fact"
  pilobster cron add "*/30 * * * *" "Remind me to stretch" --scope telegram`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, global, func(ctx context.Context, svc *commands.Service) error {
				job, err := svc.CreateSchedule(ctx, commands.ScheduleRequest{
					Schedule: args[0],
					Message:  args[1],
					Task:     task,
					Scope:    scope,
					Creator:  constants.CLILineage,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, constants.MsgJobAdded)
				fmt.Fprintf(out, constants.MsgJobID, job.ID)
				fmt.Fprintf(out, constants.MsgJobSchedule, job.Schedule)
				fmt.Fprintf(out, constants.MsgJobTask, job.Task)
				fmt.Fprint(out, constants.MsgJobActivateNote)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&scope, "scope", "", "where fires are delivered: all, telegram, terminal or a lineage")
	addCmd.Flags().StringVar(&task, "task", "", "short label for the job")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, global, func(ctx context.Context, svc *commands.Service) error {
				jobs, err := svc.ListJobs(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, constants.MsgJobsNotFound)
					return nil
				}
				for _, job := range jobs {
					fmt.Fprintf(out, constants.MsgJobID, job.ID)
					fmt.Fprintf(out, constants.MsgJobSchedule, job.Schedule)
					fmt.Fprintf(out, constants.MsgJobTask, job.Task)
					fmt.Fprintf(out, "   Scope:    %s\n\n", job.Scope)
				}
				fmt.Fprintf(out, constants.MsgJobsTotal, len(jobs))
				return nil
			})
		},
	}

	cancelCmd := &cobra.Command{
		Use:     "cancel <job-id>",
		Aliases: []string{"remove"},
		Short:   "Cancel a scheduled task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%s", constants.MsgJobIDNotNumber)
			}
			return withService(cmd, global, func(ctx context.Context, svc *commands.Service) error {
				if err := svc.CancelJob(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), constants.MsgJobCancelled+"\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, cancelCmd)
	return cmd
}

// withService opens the database just long enough to run fn.
func withService(cmd *cobra.Command, global *globalOptions, fn func(context.Context, *commands.Service) error) error {
	cfg, err := global.loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := builders.NewStorageBuilder(cfg, logger.Nop()).Build(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := commands.NewService(commands.ServiceConfig{
		Model:        cfg.Ollama.Model,
		Host:         cfg.Ollama.Host,
		DefaultScope: cfg.Scheduler.DefaultScope,
	}, commands.ServiceDeps{Store: st.Store})
	return fn(ctx, svc)
}
