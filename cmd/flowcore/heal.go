package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/flowcore/internal/healer"
)

func newHealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heal <file>",
		Short: "Repair a graph file into a runnable shape",
		Long:  "Repair a graph file and print the healed graph as JSON. Applied fixes are listed on stderr.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHeal,
	}
	cmd.Flags().StringP("output", "o", "", "Write the healed graph to file (default: stdout)")
	return cmd
}

func runHeal(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(args[0])
	if err != nil {
		return fileError(args[0], err)
	}

	h, err := healer.New(nil)
	if err != nil {
		return err
	}
	report := h.Repair(g)
	for _, fix := range report.Fixes {
		fmt.Fprintf(cmd.ErrOrStderr(), "fixed: %s\n", fix)
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	writeJSON(out, report.Graph)

	if !report.Validation.Valid() {
		return exitError(exitValidation, "graph still has %d errors after healing", len(report.Validation.Errors))
	}
	return nil
}
