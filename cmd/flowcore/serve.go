package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	flowmcp "github.com/rendis/flowcore/pkg/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the flowcore MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr.
	logger := stderrLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer a.Close()
	if a.agent == nil {
		logger.Warn("flow.agent disabled: no OpenAI-compatible endpoint configured")
	}

	srv, err := flowmcp.NewFlowServer(flowmcp.FlowServerDeps{
		Engine:  a.engine,
		Agent:   a.agent,
		Store:   a.store,
		Version: version,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("flowcore MCP server starting", "db", cfg.DBPath, "version", version)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
