package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcore/internal/engine"
	"github.com/rendis/flowcore/internal/reasoning"
	"github.com/rendis/flowcore/internal/store"
	"github.com/rendis/flowcore/pkg/schema"
)

const defaultRunsLimit = 20

type validateResponse struct {
	Valid    bool                     `json:"valid"`
	Errors   []schema.ValidationIssue `json:"errors"`
	Warnings []schema.ValidationIssue `json:"warnings"`
}

type executeResponse struct {
	Run   *schema.RunRecord   `json:"run,omitempty"`
	Batch *engine.BatchResult `json:"batch,omitempty"`
	Fixes []string            `json:"fixes,omitempty"`
}

type sessionResponse struct {
	Session    *store.AgentSession     `json:"session"`
	Iterations []*store.AgentIteration `json:"iterations"`
}

// handleValidate checks the document shape and the graph structure.
func (s *FlowServer) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, raw, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.validator.ValidateDocument(raw)
	result.Merge(s.validator.Validate(g))
	return marshalResult(validateResponse{
		Valid:    result.Valid(),
		Errors:   nonNil(result.Errors),
		Warnings: nonNil(result.Warnings),
	})
}

// handleHeal repairs a graph and reports every fix.
func (s *FlowServer) handleHeal(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, _, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(s.healer.Repair(g))
}

// handleExecute runs a graph once, or once per element of "inputs". Node
// failures come back as failed run records; structural problems as a tool
// error.
func (s *FlowServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.engine == nil {
		return mcp.NewToolResultError("execution engine not configured"), nil
	}
	g, _, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp executeResponse
	if req.GetBool("heal", false) {
		report := s.healer.Repair(g)
		g = report.Graph
		resp.Fixes = report.Fixes
	}

	if raw, ok := req.GetArguments()["inputs"]; ok {
		inputs, ok := raw.([]any)
		if !ok {
			return mcp.NewToolResultError("inputs must be an array of trigger payloads"), nil
		}
		batch, runErr := s.engine.ExecuteBatch(ctx, g, inputs)
		if batch == nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph cannot run: %v", runErr)), nil
		}
		if runErr != nil {
			s.logger.Warn("batch interrupted", "error", runErr)
		}
		resp.Batch = batch
		return marshalResult(resp)
	}

	var input any
	if in := mcp.ParseStringMap(req, "input", nil); in != nil {
		input = in
	}
	rec, runErr := s.engine.Execute(ctx, g, input)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph cannot run: %v", runErr)), nil
	}
	resp.Run = rec
	return marshalResult(resp)
}

// handleAgent runs one agent session, streaming progress to the caller's
// client session when there is one.
func (s *FlowServer) handleAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.agent == nil {
		return mcp.NewToolResultError("reasoning provider not configured"), nil
	}
	goal, err := req.RequireString("goal")
	if err != nil {
		return mcp.NewToolResultError("goal is required"), nil
	}
	g, _, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(sessionID, session.SessionID())
		defer s.sessions.Unregister(sessionID)
	}

	res := s.agent.Run(ctx, reasoning.Params{
		Goal:          goal,
		Actions:       g,
		MaxIterations: req.GetInt("max_iterations", 0),
		SessionID:     sessionID,
		InitialState:  mcp.ParseStringMap(req, "state", nil),
		Observer:      s.notifier,
	})
	s.logger.Info("agent session finished", "session_id", res.SessionID, "status", res.Status, "iterations", res.Iterations)
	return marshalResult(res)
}

// handleRuns fetches one run or lists recent runs.
func (s *FlowServer) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run store not configured"), nil
	}

	if runID := req.GetString("run_id", ""); runID != "" {
		rec, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
		}
		return marshalResult(rec)
	}

	runs, err := s.store.ListRuns(ctx, store.RunFilter{
		GraphID: req.GetString("graph_id", ""),
		Status:  schema.RunStatus(req.GetString("status", "")),
		Limit:   req.GetInt("limit", defaultRunsLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list runs failed: %v", err)), nil
	}
	if runs == nil {
		runs = []*schema.RunRecord{}
	}
	return marshalResult(runs)
}

// handleSessions fetches one agent session with its iteration snapshots, or
// lists recent sessions.
func (s *FlowServer) handleSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("run store not configured"), nil
	}

	if id := req.GetString("session_id", ""); id != "" {
		sess, err := s.store.GetAgentSession(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", err)), nil
		}
		its, err := s.store.ListAgentIterations(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("iteration lookup failed: %v", err)), nil
		}
		if its == nil {
			its = []*store.AgentIteration{}
		}
		return marshalResult(sessionResponse{Session: sess, Iterations: its})
	}

	sessions, err := s.store.ListAgentSessions(ctx, store.SessionFilter{
		Status: schema.AgentStatus(req.GetString("status", "")),
		Limit:  req.GetInt("limit", defaultRunsLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions failed: %v", err)), nil
	}
	if sessions == nil {
		sessions = []*store.AgentSession{}
	}
	return marshalResult(sessions)
}

// --- Helpers ---

// parseGraph decodes the "graph" argument and returns its JSON form too.
func parseGraph(req mcp.CallToolRequest) (schema.Graph, []byte, error) {
	var g schema.Graph
	m := mcp.ParseStringMap(req, "graph", nil)
	if m == nil {
		return g, nil, fmt.Errorf("graph is required")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return g, nil, fmt.Errorf("invalid graph: %w", err)
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return g, nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, raw, nil
}

func nonNil(issues []schema.ValidationIssue) []schema.ValidationIssue {
	if issues == nil {
		return []schema.ValidationIssue{}
	}
	return issues
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
