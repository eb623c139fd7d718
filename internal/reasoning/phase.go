package reasoning

import (
	"slices"

	"github.com/rendis/flowcore/pkg/schema"
)

// Phase is where an agent session is within a loop pass.
type Phase string

const (
	PhaseReasoning  Phase = "reasoning"
	PhaseActing     Phase = "acting"
	PhaseTerminated Phase = "terminated"
)

// validPhaseTransitions defines the allowed phase changes.
var validPhaseTransitions = map[Phase][]Phase{
	PhaseReasoning:  {PhaseActing, PhaseTerminated},
	PhaseActing:     {PhaseReasoning, PhaseTerminated},
	PhaseTerminated: {},
}

// phaseMachine tracks the phase of one session.
type phaseMachine struct {
	current Phase
}

func (m *phaseMachine) to(next Phase) error {
	if !slices.Contains(validPhaseTransitions[m.current], next) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition, "invalid agent transition: %s -> %s", m.current, next)
	}
	m.current = next
	return nil
}
