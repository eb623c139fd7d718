package reasoning

import (
	"github.com/rendis/flowcore/internal/nodetypes"
	"github.com/rendis/flowcore/pkg/schema"
)

// Candidate is a graph node offered to the provider as an action.
type Candidate struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// CandidateActions lists the nodes of g an agent may act with, in authored
// order. Triggers and pure-branching nodes are left out. A nil registry
// means the built-in types.
func CandidateActions(g schema.Graph, types *nodetypes.Registry) []Candidate {
	if types == nil {
		types = nodetypes.Builtin()
	}
	out := make([]Candidate, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if types.Category(n) == schema.CategoryTrigger || types.IsBranching(n) {
			continue
		}
		c := Candidate{ID: n.ID, Type: n.Type, Label: n.Label, Config: schema.CloneMap(n.Config)}
		if s, ok := types.Get(n.Type); ok {
			c.Description = s.Description
		}
		out = append(out, c)
	}
	return out
}
