package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the run database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return exitError(exitConfig, "%v", err)
			}
			defer a.Close()

			if err := a.store.Vacuum(cmd.Context()); err != nil {
				return exitError(exitRuntime, "vacuum: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vacuumed %s\n", cfg.DBPath)
			return nil
		},
	}
}
