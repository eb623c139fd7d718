// Package reasoning runs a bounded reason-then-act loop that treats the
// nodes of a graph as the action space toward a goal.
package reasoning

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/internal/logging"
	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

const (
	// DefaultMaxIterations applies when Params.MaxIterations is not positive.
	DefaultMaxIterations = 10
	// DefaultMemoryTurns is how many conversation turns reach the provider.
	DefaultMemoryTurns = 10

	tracerName = "github.com/rendis/flowcore/internal/reasoning"
)

// State keys merged into the working state after each action.
const (
	StateLastAction       = "lastAction"
	StateLastActionResult = "lastActionResult"
)

// IterationHook observes the session after every loop pass. Errors are
// logged and never stop the loop.
type IterationHook interface {
	OnIteration(ctx context.Context, snap *schema.AgentSnapshot) error
}

// IterationHookFunc adapts a function to IterationHook.
type IterationHookFunc func(ctx context.Context, snap *schema.AgentSnapshot) error

func (f IterationHookFunc) OnIteration(ctx context.Context, snap *schema.AgentSnapshot) error {
	return f(ctx, snap)
}

// Params describes one agent session.
type Params struct {
	Goal string
	// Actions is the graph whose nodes form the action space.
	Actions       schema.Graph
	MaxIterations int
	// SessionID keys conversation memory; generated when empty.
	SessionID    string
	InitialState map[string]any
	// Observer is an extra hook for this session only.
	Observer IterationHook
}

// Result is the outcome of a session. History is kept whatever the status.
type Result struct {
	SessionID    string                 `json:"session_id"`
	Status       schema.AgentStatus     `json:"status"`
	FinalState   map[string]any         `json:"final_state"`
	History      []schema.ReasoningStep `json:"history"`
	ActionsTaken []string               `json:"actions_taken"`
	Iterations   int                    `json:"iterations"`
	Error        string                 `json:"error,omitempty"`
}

// Loop drives agent sessions. It holds no per-session state.
type Loop struct {
	provider    Provider
	executors   *executors.Registry
	types       *nodetypes.Registry
	runtime     executors.Runtime
	memory      memory.Store
	memoryTurns int
	historyWin  int
	hooks       []IterationHook
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

// Option configures a Loop.
type Option func(*Loop)

// WithRuntime sets the runtime handed to executors while acting.
func WithRuntime(rt executors.Runtime) Option {
	return func(l *Loop) { l.runtime = rt }
}

func WithTypes(types *nodetypes.Registry) Option {
	return func(l *Loop) { l.types = types }
}

// WithMemory enables conversation memory. Only the last turns entries of a
// session reach the provider.
func WithMemory(store memory.Store, turns int) Option {
	return func(l *Loop) {
		l.memory = store
		if turns > 0 {
			l.memoryTurns = turns
		}
	}
}

// WithHistoryWindow caps the reasoning steps sent to the provider.
func WithHistoryWindow(n int) Option {
	return func(l *Loop) { l.historyWin = n }
}

// WithIterationHook registers a hook called once per loop pass.
func WithIterationHook(h IterationHook) Option {
	return func(l *Loop) { l.hooks = append(l.hooks, h) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loop) { l.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Loop) { l.newID = newID }
}

// NewLoop creates a Loop that asks provider for decisions and acts through
// reg, the same registry the engine dispatches with.
func NewLoop(provider Provider, reg *executors.Registry, opts ...Option) *Loop {
	l := &Loop{
		provider:    provider,
		executors:   reg,
		types:       nodetypes.Builtin(),
		memoryTurns: DefaultMemoryTurns,
		logger:      logging.Discard(),
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	if l.runtime == nil {
		l.runtime = executors.NewEnv(executors.Env{Conv: l.memory, Log: l.logger})
	}
	return l
}

// session is the mutable state of one Run call.
type session struct {
	params  Params
	phase   phaseMachine
	status  schema.AgentStatus
	state   map[string]any
	history []schema.ReasoningStep
	actions []string
	iter    int
	err     error
}

// Run drives one session until the provider stops, the cap is reached, or a
// pass fails. It never returns a nil Result.
func (l *Loop) Run(ctx context.Context, p Params) *Result {
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.SessionID == "" {
		p.SessionID = l.newID()
	}
	s := &session{
		params: p,
		phase:  phaseMachine{current: PhaseReasoning},
		status: schema.AgentStatusRunning,
		state:  schema.CloneMap(p.InitialState),
	}
	if s.state == nil {
		s.state = make(map[string]any)
	}

	ctx = logging.WithSessionID(ctx, p.SessionID)
	log := logging.LogWith(ctx, l.logger)
	ctx, span := l.tracer.Start(ctx, "flowcore.agent", trace.WithAttributes(
		attribute.String("flowcore.session_id", p.SessionID),
		attribute.Int("flowcore.max_iterations", p.MaxIterations),
	))
	defer span.End()

	candidates := CandidateActions(p.Actions, l.types)
	log.Info("agent started", "goal", p.Goal, "candidates", len(candidates), "max_iterations", p.MaxIterations)

	for s.status == schema.AgentStatusRunning {
		l.pass(ctx, s, candidates)
		l.notify(ctx, s)
	}

	res := &Result{
		SessionID:    p.SessionID,
		Status:       s.status,
		FinalState:   s.state,
		History:      s.history,
		ActionsTaken: s.actions,
		Iterations:   s.iter,
	}
	if s.err != nil {
		res.Error = s.err.Error()
		span.RecordError(s.err)
		span.SetStatus(codes.Error, res.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("flowcore.agent_status", string(s.status)), attribute.Int("flowcore.iterations", s.iter))
	log.Info("agent finished", "status", s.status, "iterations", s.iter, "actions", len(s.actions))
	return res
}

// pass runs one reasoning phase and, when an action is chosen, one acting
// phase. It leaves s terminated or back in the reasoning phase.
func (l *Loop) pass(ctx context.Context, s *session, candidates []Candidate) {
	s.iter++
	ctx, span := l.tracer.Start(ctx, "flowcore.agent.iteration", trace.WithAttributes(
		attribute.Int("flowcore.iteration", s.iter),
	))
	defer span.End()

	step := schema.ReasoningStep{Iteration: s.iter, At: l.now().UTC()}
	if err := ctx.Err(); err != nil {
		l.fail(s, step, schema.NewError(schema.ErrCodeCancelled, "agent cancelled").WithCause(err))
		return
	}

	decision, err := l.reason(ctx, s, candidates)
	if err != nil {
		l.fail(s, step, err)
		return
	}
	step.Thought = decision.Thought
	step.Action = decision.Action
	step.Input = decision.Input
	step.Confidence = clamp(decision.Confidence)
	step.Continue = decision.Continue
	span.SetAttributes(attribute.String("flowcore.action", decision.Action))

	switch {
	case !decision.Continue:
		s.history = append(s.history, step)
		l.terminate(s, schema.AgentStatusCompleted)
		return
	case decision.Action == "" || len(candidates) == 0:
		s.history = append(s.history, step)
		l.terminate(s, schema.AgentStatusStopped)
		return
	}
	if err := ValidateAction(candidates, decision.Action); err != nil {
		l.fail(s, step, err)
		return
	}

	if err := s.phase.to(PhaseActing); err != nil {
		l.fail(s, step, err)
		return
	}
	out, err := l.act(ctx, s, decision)
	if err != nil {
		l.fail(s, step, err)
		return
	}
	step.Result = out
	s.history = append(s.history, step)
	s.actions = append(s.actions, decision.Action)
	s.state[StateLastAction] = decision.Action
	s.state[StateLastActionResult] = out

	if s.iter >= s.params.MaxIterations {
		l.terminate(s, schema.AgentStatusStopped)
		return
	}
	if err := s.phase.to(PhaseReasoning); err != nil {
		l.fail(s, step, err)
	}
}

// reason asks the provider for a decision, reading and extending
// conversation memory when enabled.
func (l *Loop) reason(ctx context.Context, s *session, candidates []Candidate) (*Decision, error) {
	var turns []memory.Turn
	if l.memory != nil {
		var err error
		turns, err = l.memory.GetHistory(ctx, s.params.SessionID, l.memoryTurns)
		if err != nil {
			return nil, err
		}
	}

	dc := BuildDecisionContext(ContextParams{
		Goal:       s.params.Goal,
		Iteration:  s.iter,
		State:      s.state,
		History:    s.history,
		Candidates: candidates,
		Memory:     turns,

		HistoryWindow: l.historyWin,
	})
	decision, err := l.provider.Decide(ctx, dc)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "provider returned no decision")
	}

	if l.memory != nil {
		if err := l.remember(ctx, s, dc, decision); err != nil {
			return nil, err
		}
	}
	return decision, nil
}

func (l *Loop) remember(ctx context.Context, s *session, dc *DecisionContext, d *Decision) error {
	reply, err := json.Marshal(d)
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "encode decision").WithCause(err)
	}
	if err := l.memory.Append(ctx, s.params.SessionID, memory.RoleUser, dc.JSON()); err != nil {
		return err
	}
	return l.memory.Append(ctx, s.params.SessionID, memory.RoleAssistant, string(reply))
}

// act runs the chosen node through the executor registry. The decision's
// input wins over the working state.
func (l *Loop) act(ctx context.Context, s *session, d *Decision) (out any, err error) {
	var node schema.Node
	for _, n := range s.params.Actions.Nodes {
		if n.ID == d.Action {
			node = n
			break
		}
	}
	exec, err := l.executors.Get(node.Type)
	if err != nil {
		return nil, err
	}

	input := d.Input
	if input == nil {
		input = schema.CloneMap(s.state)
	}
	ctx = logging.WithNodeID(ctx, node.ID)
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "executor for %s panicked: %v", node.Type, r).WithNode(node.ID)
		}
	}()
	out, err = exec.Execute(ctx, &executors.Request{
		NodeID:   node.ID,
		NodeType: node.Type,
		Config:   schema.CloneMap(node.Config),
		Input:    input,
		Runtime:  l.runtime,
	})
	if err != nil {
		return nil, err
	}
	if b, ok := out.(*executors.Branch); ok && b != nil {
		out = b.Data
	}
	return out, nil
}

// fail terminates the session as failed, keeping the partial step.
func (l *Loop) fail(s *session, step schema.ReasoningStep, err error) {
	step.Error = err.Error()
	s.history = append(s.history, step)
	s.err = schema.NewErrorf(schema.ErrCodeAgentTerminated, "agent terminated at iteration %d: %s", s.iter, err.Error()).
		WithCause(err)
	l.terminate(s, schema.AgentStatusFailed)
}

func (l *Loop) terminate(s *session, status schema.AgentStatus) {
	_ = s.phase.to(PhaseTerminated)
	s.status = status
}

// notify hands a snapshot of s to every hook.
func (l *Loop) notify(ctx context.Context, s *session) {
	hooks := l.hooks
	if s.params.Observer != nil {
		hooks = append(hooks[:len(hooks):len(hooks)], s.params.Observer)
	}
	if len(hooks) == 0 {
		return
	}
	snap := &schema.AgentSnapshot{
		SessionID:    s.params.SessionID,
		Goal:         s.params.Goal,
		Iteration:    s.iter,
		Phase:        string(s.phase.current),
		Status:       s.status,
		State:        schema.CloneMap(s.state),
		History:      append([]schema.ReasoningStep(nil), s.history...),
		ActionsTaken: append([]string(nil), s.actions...),
	}
	for _, h := range hooks {
		if err := h.OnIteration(ctx, snap); err != nil {
			logging.LogWith(ctx, l.logger).Warn("iteration hook failed", "iteration", s.iter, "error", err)
		}
	}
}

func clamp(c float64) float64 {
	return min(max(c, 0), 1)
}
