package schema

// NodeCategory classifies a node by its role in the graph.
type NodeCategory string

const (
	CategoryTrigger NodeCategory = "trigger"
	CategoryLogic   NodeCategory = "logic"
	CategoryData    NodeCategory = "data"
	CategoryOutput  NodeCategory = "output"
	CategoryAI      NodeCategory = "ai"
)

// Categories lists every known category in canonical order.
var Categories = []NodeCategory{CategoryTrigger, CategoryLogic, CategoryData, CategoryOutput, CategoryAI}

// Valid reports whether c is one of the known categories.
func (c NodeCategory) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Reserved handle names.
const (
	HandleTrue  = "true"
	HandleFalse = "false"
	HandleError = "error"
)

// Node is one typed unit of work in a graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Category NodeCategory   `json:"category,omitempty" yaml:"category,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Label    string         `json:"label,omitempty" yaml:"label,omitempty"`
}

// Edge is a directed connection. SourceHandle selects a branch output on
// branching nodes ("true"/"false" for if_else, case value for switch, "error"
// for error routes).
type Edge struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Graph is an ordered node list plus edges. Node order is the authored order
// and breaks ties during scheduling.
type Graph struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (g Graph) Clone() Graph {
	out := Graph{ID: g.ID, Name: g.Name}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		copy(out.Edges, g.Edges)
	}
	return out
}

// Clone deep-copies the node config.
func (n Node) Clone() Node {
	n.Config = CloneMap(n.Config)
	return n
}

// NodeIndex maps node ID to its authored position. The first occurrence wins
// for duplicate IDs.
func (g Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, ok := idx[n.ID]; !ok {
			idx[n.ID] = i
		}
	}
	return idx
}

// NodeByID returns the first node with id.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Incoming returns the edges targeting id, in authored edge order.
func (g Graph) Incoming(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges leaving id, in authored edge order.
func (g Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// ConfigString reads a string config value, returning "" when absent or not a string.
func (n Node) ConfigString(key string) string {
	if n.Config == nil {
		return ""
	}
	s, _ := n.Config[key].(string)
	return s
}

// ConfigStrings reads a list of strings from config, accepting []string or
// []any holding strings. Non-string items are skipped.
func (n Node) ConfigStrings(key string) []string {
	if n.Config == nil {
		return nil
	}
	switch v := n.Config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CloneMap deep-copies nested maps and slices of a JSON-like value.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-like value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = CloneValue(x)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
