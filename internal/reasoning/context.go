package reasoning

import (
	"encoding/json"

	"github.com/rendis/flowcore/internal/memory"
	"github.com/rendis/flowcore/pkg/schema"
)

// DecisionContext is everything a provider sees when choosing the next
// action.
type DecisionContext struct {
	Goal       string                 `json:"goal"`
	Iteration  int                    `json:"iteration"`
	State      map[string]any         `json:"state,omitempty"`
	History    []schema.ReasoningStep `json:"history,omitempty"`
	Candidates []Candidate            `json:"candidates"`
	Memory     []memory.Turn          `json:"-"`
}

// ContextParams holds the inputs needed to build a DecisionContext.
type ContextParams struct {
	Goal       string
	Iteration  int
	State      map[string]any
	History    []schema.ReasoningStep
	Candidates []Candidate
	Memory     []memory.Turn
	// HistoryWindow caps the steps carried in the context; 0 keeps all.
	HistoryWindow int
}

// BuildDecisionContext assembles a provider context. State and history are
// copied so the provider cannot mutate the loop's working data.
func BuildDecisionContext(p ContextParams) *DecisionContext {
	history := p.History
	if p.HistoryWindow > 0 && len(history) > p.HistoryWindow {
		history = history[len(history)-p.HistoryWindow:]
	}
	return &DecisionContext{
		Goal:       p.Goal,
		Iteration:  p.Iteration,
		State:      schema.CloneMap(p.State),
		History:    append([]schema.ReasoningStep(nil), history...),
		Candidates: p.Candidates,
		Memory:     p.Memory,
	}
}

// JSON renders the context for a text prompt.
func (dc *DecisionContext) JSON() string {
	data, err := json.Marshal(dc)
	if err != nil {
		// Fallback guaranteed to succeed: only uses string literal keys.
		fallback, _ := json.Marshal(map[string]any{"goal": dc.Goal, "iteration": dc.Iteration})
		return string(fallback)
	}
	return string(data)
}
