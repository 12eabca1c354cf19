package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/constants"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Validate and create PiLobster configuration files.`,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := global.loadConfig(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), constants.MsgConfigValid)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the defaults",
		Long: `Write a configuration file with every default filled in. The format
follows the extension: .yaml or .yml for YAML, TOML otherwise. An existing
file is never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.configPath
			if len(args) > 0 {
				path = args[0]
			}
			cfg := config.Default()
			cfg.Telegram.Token = "${TELEGRAM_BOT_TOKEN}"
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgConfigWritten, path)
			return nil
		},
	}

	cmd.AddCommand(validateCmd, initCmd)
	return cmd
}
