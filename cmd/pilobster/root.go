package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/messages"
	"github.com/pilobster/pilobster/internal/version"
)

// globalOptions are the flags every command shares.
type globalOptions struct {
	configPath string
	envPath    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "pilobster",
		Short: "PiLobster - local AI assistant with scheduled tasks",
		Long: `PiLobster connects a local Ollama model to Telegram and a terminal UI,
and runs recurring tasks whose answers are delivered to every open chat.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", constants.DefaultConfigPath, "path to the config file (TOML or YAML)")
	cmd.PersistentFlags().StringVar(&opts.envPath, "env", constants.DefaultEnvPath, "path to a .env file")

	cmd.AddCommand(
		newServeCmd(opts),
		newCronCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads the .env file and the configuration. A missing file at
// the default path falls back to the built-in defaults.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvOptional(o.envPath); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", o.envPath, err)
	}

	var cfg *config.Config
	if _, err := os.Stat(o.configPath); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(o.configPath)
		if err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), messages.FormatConfigLoadError(err))
			return nil, err
		}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), messages.FormatValidationErrors(errs))
		return nil, fmt.Errorf("configuration has %d error(s)", len(errs))
	}
	return cfg, nil
}
