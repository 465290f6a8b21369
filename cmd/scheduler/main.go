package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/room-scheduler/internal/config"
	"github.com/example/room-scheduler/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cliState is filled by the root command before any subcommand runs.
type cliState struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd(logOutput io.Writer) *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:          "scheduler",
		Short:        "Meeting room reservation service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(state.configPath)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			logger, err := logging.New(logOutput, cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return err
			}
			state.cfg = cfg
			state.logger = logger
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&state.configPath, "config", "", "Path to a YAML or TOML configuration file (env: SCHEDULER_*)")

	rootCmd.AddCommand(newServeCmd(state))
	rootCmd.AddCommand(newMigrateCmd(state))
	rootCmd.AddCommand(newSeedCmd(state))
	rootCmd.AddCommand(newSlotsCmd(state))
	return rootCmd
}
