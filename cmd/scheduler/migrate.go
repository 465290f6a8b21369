package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := openStorage(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.Migrate(cmd.Context()); err != nil {
				state.logger.Error("failed to apply migrations", "error", err)
				return err
			}
			state.logger.Info("migrations applied", "store", state.cfg.StoreDriver)
			return nil
		},
	}
}
