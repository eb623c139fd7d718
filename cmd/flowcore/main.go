package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowcore",
		Short: "flowcore graph engine CLI",
		Long:  "flowcore validates, repairs and runs node graphs, and drives an agent over a graph's nodes.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("db-path", "", "Path to the libSQL database (default: ~/.flowcore/flowcore.db)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("flowcore version %s\n", version))

	root.AddCommand(newValidateCmd())
	root.AddCommand(newHealCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVacuumCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flowcore version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// resolveConfig loads the layered config and applies the global flags.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, exitError(exitConfig, "loading config: %v", err)
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}
