package reasoning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rendis/flowcore/internal/executors"
	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/pkg/schema"
)

// actionGraph offers "remember" (set) and "explode" (stop_and_error) as
// actions alongside a trigger and a branch that are never offered.
func actionGraph() schema.Graph {
	return schema.Graph{
		Nodes: []schema.Node{
			{ID: "start", Type: "manual_trigger"},
			{ID: "check", Type: "if_else", Config: map[string]any{"condition": "true"}},
			{ID: "remember", Type: "set", Config: map[string]any{"keep_input": true, "values": map[string]any{"noted": "yes"}}},
			{ID: "explode", Type: "stop_and_error", Config: map[string]any{"message": "cannot continue"}},
		},
		Edges: []schema.Edge{{Source: "start", Target: "check"}, {Source: "check", Target: "remember", SourceHandle: "true"}},
	}
}

// script replays decisions in order and records what the provider saw.
type script struct {
	mu        sync.Mutex
	decisions []*Decision
	err       error
	seen      []*DecisionContext
}

func (s *script) Decide(_ context.Context, dc *DecisionContext) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, dc)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.decisions) == 0 {
		return &Decision{Continue: true, Action: "remember", Confidence: 0.5}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func newTestLoop(t *testing.T, p Provider, opts ...Option) *Loop {
	t.Helper()
	reg, err := executors.NewBuiltinRegistry(executors.BuiltinConfig{})
	require.NoError(t, err)
	base := []Option{
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDGenerator(func() string { return "session-1" }),
	}
	return NewLoop(p, reg, append(base, opts...)...)
}

func TestRun_StopOnFirstIterationCompletes(t *testing.T) {
	p := &script{decisions: []*Decision{{Thought: "already done", Continue: false, Confidence: 1}}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "nothing to do", Actions: actionGraph(), MaxIterations: 5})

	assert.Equal(t, schema.AgentStatusCompleted, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.ActionsTaken)
	require.Len(t, res.History, 1)
	assert.Equal(t, "already done", res.History[0].Thought)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Empty(t, res.Error)
}

func TestRun_CapReachedIsStopped(t *testing.T) {
	p := &script{}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "loop forever", Actions: actionGraph(), MaxIterations: 3})

	assert.Equal(t, schema.AgentStatusStopped, res.Status)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, p.seen, 3)
	assert.Equal(t, []string{"remember", "remember", "remember"}, res.ActionsTaken)
	assert.Len(t, res.History, 3)
}

func TestRun_NeverExceedsCap(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		p := &script{}
		res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: n})
		assert.LessOrEqual(t, len(p.seen), n)
		assert.Equal(t, schema.AgentStatusStopped, res.Status)
	}
}

func TestRun_ExplicitStopOnLastIterationCompletes(t *testing.T) {
	p := &script{decisions: []*Decision{
		{Continue: true, Action: "remember"},
		{Continue: false},
	}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 2})
	assert.Equal(t, schema.AgentStatusCompleted, res.Status)
	assert.Equal(t, 2, res.Iterations)
}

func TestRun_DefaultCap(t *testing.T) {
	p := &script{}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph()})
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
	assert.Equal(t, schema.AgentStatusStopped, res.Status)
}

func TestRun_ContinueWithoutActionStops(t *testing.T) {
	p := &script{decisions: []*Decision{{Continue: true}}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})
	assert.Equal(t, schema.AgentStatusStopped, res.Status)
	assert.Equal(t, 1, res.Iterations)
}

func TestRun_NoCandidatesStops(t *testing.T) {
	p := &script{decisions: []*Decision{{Continue: true, Action: "anything"}}}
	g := schema.Graph{Nodes: []schema.Node{{ID: "start", Type: "manual_trigger"}}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: g, MaxIterations: 5})
	assert.Equal(t, schema.AgentStatusStopped, res.Status)
	assert.Empty(t, p.seen[0].Candidates)
}

func TestRun_UnknownActionFails(t *testing.T) {
	p := &script{decisions: []*Decision{{Continue: true, Action: "check"}}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})

	assert.Equal(t, schema.AgentStatusFailed, res.Status)
	require.Len(t, res.History, 1)
	assert.Contains(t, res.History[0].Error, "invalid action")
	assert.Contains(t, res.Error, schema.ErrCodeAgentTerminated)
}

func TestRun_ActionFailureKeepsHistory(t *testing.T) {
	p := &script{decisions: []*Decision{
		{Thought: "first", Continue: true, Action: "remember"},
		{Thought: "second", Continue: true, Action: "explode"},
		{Thought: "never", Continue: false},
	}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})

	assert.Equal(t, schema.AgentStatusFailed, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []string{"remember"}, res.ActionsTaken)
	require.Len(t, res.History, 2)
	assert.NotNil(t, res.History[0].Result)
	assert.Equal(t, "explode", res.History[1].Action)
	assert.Contains(t, res.History[1].Error, "cannot continue")
	assert.Equal(t, "remember", res.FinalState[StateLastAction])
}

func TestRun_ProviderErrorFails(t *testing.T) {
	p := &script{err: errors.New("model offline")}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})

	assert.Equal(t, schema.AgentStatusFailed, res.Status)
	require.Len(t, res.History, 1)
	assert.Equal(t, "model offline", res.History[0].Error)
	assert.Contains(t, res.Error, "model offline")
}

func TestRun_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &script{}
	res := newTestLoop(t, p).Run(ctx, Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})
	assert.Equal(t, schema.AgentStatusFailed, res.Status)
	assert.Empty(t, p.seen)
}

func TestRun_StateMerge(t *testing.T) {
	initial := map[string]any{"ticket": "T-1"}
	p := &script{decisions: []*Decision{
		{Continue: true, Action: "remember"},
		{Continue: false},
	}}
	res := newTestLoop(t, p).Run(context.Background(), Params{
		Goal: "g", Actions: actionGraph(), MaxIterations: 5, InitialState: initial,
	})

	require.Equal(t, schema.AgentStatusCompleted, res.Status)
	assert.Equal(t, "remember", res.FinalState[StateLastAction])
	result := res.FinalState[StateLastActionResult].(map[string]any)
	assert.Equal(t, "T-1", result["ticket"])
	assert.Equal(t, "yes", result["noted"])
	assert.Equal(t, map[string]any{"ticket": "T-1"}, initial)

	assert.Equal(t, "T-1", p.seen[1].State["ticket"])
	assert.Len(t, p.seen[1].History, 1)
}

func TestRun_DecisionInputWins(t *testing.T) {
	p := &script{decisions: []*Decision{
		{Continue: true, Action: "remember", Input: map[string]any{"from": "decision"}},
		{Continue: false},
	}}
	res := newTestLoop(t, p).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 5})
	result := res.History[0].Result.(map[string]any)
	assert.Equal(t, "decision", result["from"])
}

func TestRun_HookOncePerPass(t *testing.T) {
	var snaps []*schema.AgentSnapshot
	hook := IterationHookFunc(func(_ context.Context, snap *schema.AgentSnapshot) error {
		snaps = append(snaps, snap)
		return errors.New("ignored")
	})
	p := &script{}
	res := newTestLoop(t, p, WithIterationHook(hook)).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 4})

	require.Len(t, snaps, res.Iterations)
	for i, s := range snaps {
		assert.Equal(t, i+1, s.Iteration)
		assert.Len(t, s.History, i+1)
	}
	assert.Equal(t, schema.AgentStatusRunning, snaps[0].Status)
	assert.Equal(t, string(PhaseReasoning), snaps[0].Phase)
	last := snaps[len(snaps)-1]
	assert.Equal(t, schema.AgentStatusStopped, last.Status)
	assert.Equal(t, string(PhaseTerminated), last.Phase)
}

func TestRun_MemoryWindow(t *testing.T) {
	store := memory.NewInMemoryStore(0)
	p := &script{}
	loop := newTestLoop(t, p, WithMemory(store, 2))
	res := loop.Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 4, SessionID: "s-42"})
	require.Equal(t, 4, res.Iterations)

	var sizes []int
	for _, dc := range p.seen {
		sizes = append(sizes, len(dc.Memory))
	}
	assert.Equal(t, []int{0, 2, 2, 2}, sizes)

	all, err := store.GetHistory(context.Background(), "s-42", 0)
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, memory.RoleUser, all[0].Role)
	assert.Equal(t, memory.RoleAssistant, all[1].Role)
}

func TestRun_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	p := &script{}
	newTestLoop(t, p, WithTracerProvider(tp)).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 2})

	ended := sr.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "flowcore.agent.iteration", ended[0].Name())
	assert.Equal(t, "flowcore.agent", ended[2].Name())
}

func TestCandidateActions(t *testing.T) {
	cands := CandidateActions(actionGraph(), nil)
	var ids []string
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"remember", "explode"}, ids)
	assert.NotEmpty(t, cands[0].Description)
}

func TestValidateAction(t *testing.T) {
	cands := []Candidate{{ID: "a"}, {ID: "b"}}
	assert.NoError(t, ValidateAction(cands, "b"))
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(ValidateAction(cands, "c")))
	assert.Error(t, ValidateAction(nil, "a"))
}

func TestPhaseTransitions(t *testing.T) {
	m := phaseMachine{current: PhaseReasoning}
	require.NoError(t, m.to(PhaseActing))
	require.NoError(t, m.to(PhaseReasoning))
	require.NoError(t, m.to(PhaseTerminated))
	err := m.to(PhaseReasoning)
	assert.Equal(t, schema.ErrCodeInvalidTransition, schema.CodeOf(err))
}

func TestRun_HistoryWindow(t *testing.T) {
	p := &script{}
	newTestLoop(t, p, WithHistoryWindow(1)).Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 3})
	require.Len(t, p.seen, 3)
	assert.Empty(t, p.seen[0].History)
	require.Len(t, p.seen[2].History, 1)
	assert.Equal(t, 2, p.seen[2].History[0].Iteration)
}

func TestRun_ObserverSeesOnlyItsSession(t *testing.T) {
	var global, local int
	loop := newTestLoop(t, &script{}, WithIterationHook(IterationHookFunc(func(context.Context, *schema.AgentSnapshot) error {
		global++
		return nil
	})))
	observer := IterationHookFunc(func(context.Context, *schema.AgentSnapshot) error {
		local++
		return nil
	})

	loop.Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 2, Observer: observer})
	loop.Run(context.Background(), Params{Goal: "g", Actions: actionGraph(), MaxIterations: 2})
	assert.Equal(t, 4, global)
	assert.Equal(t, 2, local)
}
