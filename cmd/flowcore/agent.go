package main

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rendis/flowcore/internal/reasoning"
	"github.com/rendis/flowcore/pkg/schema"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent <file>",
		Short: "Pursue a goal using the nodes of a graph file as actions",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgent,
	}
	cmd.Flags().StringP("goal", "g", "", "What the agent should achieve")
	cmd.Flags().Int("max-iterations", 0, "Iteration cap (default: config max_iterations)")
	cmd.Flags().String("session", "", "Session id for conversation memory (default: generated)")
	cmd.Flags().String("state", "", "Initial working state as inline JSON object")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func runAgent(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(args[0])
	if err != nil {
		return fileError(args[0], err)
	}

	goal, _ := cmd.Flags().GetString("goal")
	maxIter, _ := cmd.Flags().GetInt("max-iterations")
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	var state map[string]any
	if raw, _ := cmd.Flags().GetString("state"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return exitError(exitInputParse, "parsing state: %v", err)
		}
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if maxIter <= 0 {
		maxIter = cfg.MaxIterations
	}
	a, err := newApp(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer a.Close()
	if err := a.requireAgent(); err != nil {
		return exitError(exitConfig, "%v", err)
	}

	res := a.agent.Run(cmd.Context(), reasoning.Params{
		Goal:          goal,
		Actions:       g,
		MaxIterations: maxIter,
		SessionID:     sessionID,
		InitialState:  state,
	})
	writeJSON(cmd.OutOrStdout(), res)

	if res.Status == schema.AgentStatusFailed {
		return exitError(exitRuntime, "agent failed: %s", res.Error)
	}
	return nil
}
