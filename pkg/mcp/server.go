package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcore/internal/engine"
	"github.com/rendis/flowcore/internal/healer"
	"github.com/rendis/flowcore/internal/reasoning"
	"github.com/rendis/flowcore/internal/store"
	"github.com/rendis/flowcore/internal/validation"
)

// FlowServerDeps holds the dependencies for creating a FlowServer.
// Agent and Store are optional; the tools needing them report an error
// when they are missing.
type FlowServerDeps struct {
	Engine    *engine.Engine
	Validator *validation.GraphValidator
	Healer    *healer.Healer
	Agent     *reasoning.Loop
	Store     store.Store
	Version   string
	Logger    *slog.Logger
}

// FlowServer wraps an MCP server with flowcore tool handlers.
type FlowServer struct {
	engine    *engine.Engine
	validator *validation.GraphValidator
	healer    *healer.Healer
	agent     *reasoning.Loop
	store     store.Store
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *SessionNotifier
	mcpServer *server.MCPServer
}

// NewFlowServer creates a FlowServer with all tools registered.
func NewFlowServer(deps FlowServerDeps) (*FlowServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	validator := deps.Validator
	if validator == nil {
		v, err := validation.NewGraphValidator(nil)
		if err != nil {
			return nil, err
		}
		validator = v
	}
	h := deps.Healer
	if h == nil {
		var err error
		if h, err = healer.New(validator.Types()); err != nil {
			return nil, err
		}
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &FlowServer{
		engine:    deps.Engine,
		validator: validator,
		healer:    h,
		agent:     deps.Agent,
		store:     deps.Store,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowcore",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowcore validates, repairs and runs node graphs. Use flow.validate to check a graph, flow.heal to repair it, flow.execute to run it, flow.agent to pursue a goal with the graph's nodes as actions, flow.runs to inspect past runs, and flow.sessions to inspect agent sessions."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewSessionNotifier(mcpSrv, s.sessions)
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *FlowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: healTool(), Handler: s.handleHeal},
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: agentTool(), Handler: s.handleAgent},
		{Tool: runsTool(), Handler: s.handleRuns},
		{Tool: sessionsTool(), Handler: s.handleSessions},
	}
}

// --- Tool definitions ---

func validateTool() mcp.Tool {
	return mcp.NewTool("flow.validate",
		mcp.WithDescription("Validate a graph and list its errors and warnings"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph with nodes and edges")),
	)
}

func healTool() mcp.Tool {
	return mcp.NewTool("flow.heal",
		mcp.WithDescription("Repair a graph into a runnable shape and list the fixes applied"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph with nodes and edges")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("flow.execute",
		mcp.WithDescription("Run a graph once and return its run record"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph with nodes and edges")),
		mcp.WithObject("input", mcp.Description("Trigger payload")),
		mcp.WithArray("inputs",
			mcp.Description("Run once per payload, concurrently; replaces input and returns a batch with pool counters"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithBoolean("heal", mcp.Description("Repair the graph before running it (default: false)")),
	)
}

func agentTool() mcp.Tool {
	return mcp.NewTool("flow.agent",
		mcp.WithDescription("Pursue a goal by letting the reasoning provider pick graph nodes as actions"),
		mcp.WithString("goal", mcp.Required(), mcp.Description("What the agent should achieve")),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph whose nodes are the available actions")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration cap (default: 10)")),
		mcp.WithString("session_id", mcp.Description("Session id for conversation memory (default: generated)")),
		mcp.WithObject("state", mcp.Description("Initial working state")),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("flow.runs",
		mcp.WithDescription("Get one run with its logs, or list recent runs"),
		mcp.WithString("run_id", mcp.Description("Run to fetch; omit to list")),
		mcp.WithString("graph_id", mcp.Description("Only runs of this graph")),
		mcp.WithString("status", mcp.Enum("completed", "failed"), mcp.Description("Only runs with this status")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to list (default: 20)")),
	)
}

func sessionsTool() mcp.Tool {
	return mcp.NewTool("flow.sessions",
		mcp.WithDescription("Get one agent session with its iteration snapshots, or list recent sessions"),
		mcp.WithString("session_id", mcp.Description("Session to fetch; omit to list")),
		mcp.WithString("status", mcp.Enum("running", "completed", "stopped", "failed"), mcp.Description("Only sessions with this status")),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to list (default: 20)")),
	)
}
