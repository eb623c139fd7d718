package reasoning

import (
	"github.com/rendis/flowcore/pkg/schema"
)

// ValidateAction checks that the chosen action id is one of the candidates.
func ValidateAction(candidates []Candidate, choice string) error {
	for _, c := range candidates {
		if c.ID == choice {
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "invalid action %q: not in candidate actions", choice).
		WithDetails(map[string]any{"action": choice})
}
