package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/internal/logging"
	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// DefaultPoolSize is the default number of concurrent runs in ExecuteBatch.
const DefaultPoolSize = 10

const tracerName = "github.com/rendis/flowcore/internal/engine"

// RunRecorder receives every finished run record exactly once.
// Satisfied by store.LibSQLStore.
type RunRecorder interface {
	SaveRun(ctx context.Context, rec *schema.RunRecord) error
}

// Engine executes graphs. It holds no per-run state; concurrent Execute
// calls are independent.
type Engine struct {
	executors *executors.Registry
	types     *nodetypes.Registry
	runtime   executors.Runtime
	recorder  RunRecorder
	logger    *slog.Logger
	tracer    trace.Tracer
	fsm       *NodeFSM
	poolSize  int
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRuntime sets the runtime handed to executors.
func WithRuntime(rt executors.Runtime) Option {
	return func(e *Engine) { e.runtime = rt }
}

// WithTypes sets the node-type registry used to classify nodes.
func WithTypes(types *nodetypes.Registry) Option {
	return func(e *Engine) { e.types = types }
}

func WithRecorder(r RunRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPoolSize bounds concurrent runs in ExecuteBatch.
func WithPoolSize(n int) Option {
	return func(e *Engine) { e.poolSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithTransitionHook observes every node status change.
func WithTransitionHook(h TransitionHook) Option {
	return func(e *Engine) { e.fsm.OnTransition(h) }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// New creates an Engine dispatching through reg.
func New(reg *executors.Registry, opts ...Option) *Engine {
	e := &Engine{
		executors: reg,
		types:     nodetypes.Builtin(),
		logger:    logging.Discard(),
		tracer:    otel.Tracer(tracerName),
		fsm:       NewNodeFSM(),
		poolSize:  DefaultPoolSize,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if e.runtime == nil {
		e.runtime = executors.NewEnv(executors.Env{Log: e.logger})
	}
	return e
}

// Execute runs g once with the given trigger payload. Structural problems
// (duplicate ids, dangling edges, trigger count, cycles) are returned as an
// error before any node runs. Node failures do not produce an error: they
// are reported in the returned record with status failed.
func (e *Engine) Execute(ctx context.Context, g schema.Graph, input any) (*schema.RunRecord, error) {
	plan, err := BuildPlan(g, e.types)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, plan, input), nil
}

func (e *Engine) run(ctx context.Context, plan *Plan, input any) *schema.RunRecord {
	rec := &schema.RunRecord{
		ID:        e.newID(),
		GraphID:   plan.Graph.ID,
		Status:    schema.RunStatusRunning,
		Input:     input,
		Logs:      make([]schema.ExecutionLogEntry, 0, len(plan.Order)),
		StartedAt: e.now().UTC(),
	}
	ctx = logging.WithRunID(ctx, rec.ID)
	log := logging.LogWith(ctx, e.logger)

	ctx, span := e.tracer.Start(ctx, "flowcore.run", trace.WithAttributes(
		attribute.String("flowcore.run_id", rec.ID),
		attribute.String("flowcore.graph_id", plan.Graph.ID),
	))
	defer span.End()

	log.Info("run started", "graph_id", plan.Graph.ID, "nodes", len(plan.Order))

	ec := NewExecutionContext(input)
	var held []heldNode
	for _, id := range plan.Order {
		node := plan.Node(id)
		if plan.ErrorOnly(id) {
			held = append(held, heldNode{id: id, pos: len(rec.Logs)})
			continue
		}
		if !ec.isLive(plan, id) {
			rec.Logs = append(rec.Logs, e.skip(ctx, rec.ID, ec, node))
			continue
		}

		entry, branched, err := e.dispatch(ctx, rec.ID, ec, node, ec.resolveInput(plan, id), false)
		rec.Logs = append(rec.Logs, entry)
		if err != nil {
			rec.Status = schema.RunStatusFailed
			rec.Error = err.Error()
			rec.FailedNode = id
			log.Warn("node failed", "node_id", id, "node_type", node.Type, "error", err)
			rec.Logs = append(rec.Logs, e.routeError(ctx, plan, rec.ID, ec, node, err)...)
			break
		}
		ec.record(id, entry.Output, entry.Handle, branched)
	}

	if rec.Status == schema.RunStatusRunning {
		rec.Status = schema.RunStatusCompleted
		// Nothing failed, so error-only nodes are skipped in their scheduled slot.
		for i, h := range held {
			rec.Logs = slices.Insert(rec.Logs, h.pos+i, e.skip(ctx, rec.ID, ec, plan.Node(h.id)))
		}
	}
	rec.FinalOutput = finalOutput(rec.Logs, input)
	rec.FinishedAt = e.now().UTC()

	if rec.Status == schema.RunStatusFailed {
		span.SetStatus(codes.Error, rec.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	log.Info("run finished", "status", rec.Status, "duration_ms", rec.FinishedAt.Sub(rec.StartedAt).Milliseconds())

	if e.recorder != nil {
		if err := e.recorder.SaveRun(ctx, rec); err != nil {
			log.Error("persist run failed", "error", err)
		}
	}
	return rec
}

// heldNode is an error-only node and the log position it was scheduled at.
type heldNode struct {
	id  string
	pos int
}

// advance moves nodeID from its current status to to. A rejected transition
// leaves the status unchanged.
func (e *Engine) advance(ctx context.Context, runID string, ec *ExecutionContext, nodeID string, to schema.NodeStatus) {
	if err := e.fsm.Transition(ctx, runID, nodeID, ec.State(nodeID), to); err != nil {
		logging.LogWith(ctx, e.logger).Error("node transition rejected", "node_id", nodeID, "error", err)
		return
	}
	ec.setStatus(nodeID, to)
}

func (e *Engine) skip(ctx context.Context, runID string, ec *ExecutionContext, node schema.Node) schema.ExecutionLogEntry {
	e.advance(ctx, runID, ec, node.ID, schema.NodeStatusSkipped)
	now := e.now().UTC()
	return schema.ExecutionLogEntry{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Status:     schema.NodeStatusSkipped,
		StartedAt:  now,
		FinishedAt: now,
	}
}

// dispatch runs one node through its executor and returns its log entry.
// branched is true when the executor returned a *executors.Branch.
func (e *Engine) dispatch(ctx context.Context, runID string, ec *ExecutionContext, node schema.Node, input any, errorRoute bool) (schema.ExecutionLogEntry, bool, error) {
	entry := schema.ExecutionLogEntry{
		NodeID:     node.ID,
		NodeType:   node.Type,
		Status:     schema.NodeStatusRunning,
		StartedAt:  e.now().UTC(),
		Input:      input,
		ErrorRoute: errorRoute,
	}
	ctx = logging.WithNodeID(ctx, node.ID)
	e.advance(ctx, runID, ec, node.ID, schema.NodeStatusRunning)

	ctx, span := e.tracer.Start(ctx, "flowcore.node", trace.WithAttributes(
		attribute.String("flowcore.run_id", runID),
		attribute.String("flowcore.node_id", node.ID),
		attribute.String("flowcore.node_type", node.Type),
		attribute.Bool("flowcore.error_route", errorRoute),
	))
	defer span.End()

	out, err := e.invoke(ctx, node, input)
	entry.FinishedAt = e.now().UTC()

	if err != nil {
		e.advance(ctx, runID, ec, node.ID, schema.NodeStatusFailed)
		entry.Status = schema.NodeStatusFailed
		entry.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return entry, false, err
	}

	b, branched := out.(*executors.Branch)
	branched = branched && b != nil
	if branched {
		entry.Handle = b.Handle
		out = b.Data
		span.SetAttributes(attribute.String("flowcore.handle", b.Handle))
	}
	e.advance(ctx, runID, ec, node.ID, schema.NodeStatusSuccess)
	entry.Status = schema.NodeStatusSuccess
	entry.Output = out
	span.SetStatus(codes.Ok, "")
	return entry, branched, nil
}

// invoke calls the executor, turning a panic into an EXECUTION_ERROR.
func (e *Engine) invoke(ctx context.Context, node schema.Node, input any) (out any, err error) {
	exec, err := e.executors.Get(node.Type)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecutorUnavailable, "node %s: %s", node.ID, err.Error()).WithNode(node.ID).WithCause(err)
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "executor for %s panicked: %v", node.Type, r).WithNode(node.ID)
		}
	}()
	return exec.Execute(ctx, &executors.Request{
		NodeID:   node.ID,
		NodeType: node.Type,
		Config:   schema.CloneMap(node.Config),
		Input:    input,
		Runtime:  e.runtime,
	})
}

// routeError dispatches the error route of a failed node once: the targets
// of its "error" edges, or of the trigger's when it has none. Targets that
// already settled on the success path are left alone. The run stays failed
// whatever the routes do.
func (e *Engine) routeError(ctx context.Context, plan *Plan, runID string, ec *ExecutionContext, failed schema.Node, cause error) []schema.ExecutionLogEntry {
	targets := errorTargets(plan, failed.ID)
	if len(targets) == 0 && failed.ID != plan.Trigger {
		targets = errorTargets(plan, plan.Trigger)
	}
	if len(targets) == 0 {
		return nil
	}

	payload := map[string]any{
		"error":     cause.Error(),
		"node_id":   failed.ID,
		"node_type": failed.Type,
	}
	entries := make([]schema.ExecutionLogEntry, 0, len(targets))
	for _, id := range targets {
		if st := ec.State(id); st != schema.NodeStatusPending {
			logging.LogWith(ctx, e.logger).Debug("error route target already settled", "node_id", id, "status", st)
			continue
		}
		entry, _, err := e.dispatch(ctx, runID, ec, plan.Node(id), schema.CloneMap(payload), true)
		if err != nil {
			logging.LogWith(ctx, e.logger).Debug("error route failed", "node_id", id, "error", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// errorTargets lists the distinct targets of id's error edges in authored
// node order.
func errorTargets(plan *Plan, id string) []string {
	seen := make(map[string]bool)
	for _, edge := range plan.Outgoing(id) {
		if edge.SourceHandle == schema.HandleError {
			seen[edge.Target] = true
		}
	}
	var out []string
	for _, n := range plan.Graph.Nodes {
		if seen[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// finalOutput is the output of the last successful node when non-nil, else
// the last non-nil successful output, else the trigger input.
func finalOutput(logs []schema.ExecutionLogEntry, input any) any {
	var last, lastNonNil any
	found := false
	for _, l := range logs {
		if l.Status != schema.NodeStatusSuccess || l.ErrorRoute {
			continue
		}
		last, found = l.Output, true
		if l.Output != nil {
			lastNonNil = l.Output
		}
	}
	switch {
	case found && last != nil:
		return last
	case lastNonNil != nil:
		return lastNonNil
	default:
		return input
	}
}

// Summary renders the run outcome for CLI output.
func Summary(rec *schema.RunRecord) string {
	if rec.Status == schema.RunStatusFailed {
		return fmt.Sprintf("run %s failed at %s: %s", rec.ID, rec.FailedNode, rec.Error)
	}
	return fmt.Sprintf("run %s %s (%d nodes)", rec.ID, rec.Status, len(rec.Logs))
}
