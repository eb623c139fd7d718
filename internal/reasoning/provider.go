package reasoning

import "context"

// Decision is a provider's answer for one pass.
type Decision struct {
	Thought string `json:"thought,omitempty"`
	// Action is the id of the candidate to run; empty means none.
	Action     string  `json:"action,omitempty"`
	Input      any     `json:"input,omitempty"`
	Confidence float64 `json:"confidence"`
	// Continue false asks the loop to stop with status completed.
	Continue bool `json:"continue"`
}

// Provider chooses the next action toward a goal.
type Provider interface {
	Decide(ctx context.Context, dc *DecisionContext) (*Decision, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, dc *DecisionContext) (*Decision, error)

func (f ProviderFunc) Decide(ctx context.Context, dc *DecisionContext) (*Decision, error) {
	return f(ctx, dc)
}
