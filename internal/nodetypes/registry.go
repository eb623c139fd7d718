package nodetypes

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rendis/flowcore/pkg/schema"
)

// Schema describes a node type: its category, the config keys it needs and
// the defaults the healer may fill in.
type Schema struct {
	Type         string              `json:"type"`
	Category     schema.NodeCategory `json:"category"`
	Description  string              `json:"description,omitempty"`
	Required     []string            `json:"required,omitempty"`
	Defaults     map[string]any      `json:"defaults,omitempty"`
	Terminal     bool                `json:"terminal,omitempty"`
	Action       bool                `json:"action,omitempty"`
	Branching    bool                `json:"branching,omitempty"`
	ConfigSchema json.RawMessage     `json:"config_schema,omitempty"`
}

// IsTerminal reports whether nodes of this type count as a destination:
// output-category, explicitly terminal, or an external action.
func (s Schema) IsTerminal() bool {
	return s.Terminal || s.Action || s.Category == schema.CategoryOutput
}

// Registry is a thread-safe lookup of node type schemas.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Schema
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Schema)}
}

// Register adds a schema. Returns error on duplicate or malformed entries.
func (r *Registry) Register(s Schema) error {
	if s.Type == "" {
		return schema.NewError(schema.ErrCodeValidation, "node type is empty")
	}
	if !s.Category.Valid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "node type %q has unknown category %q", s.Type, s.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[s.Type]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node type %q already registered", s.Type)
	}
	r.types[s.Type] = s
	return nil
}

// Get retrieves a schema by type tag.
func (r *Registry) Get(nodeType string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.types[nodeType]
	return s, ok
}

// Has checks if a type is registered.
func (r *Registry) Has(nodeType string) bool {
	_, ok := r.Get(nodeType)
	return ok
}

// List returns all schemas sorted by type.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.types))
	for _, s := range r.types {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Category resolves the category of a node: the registry wins for known
// types, otherwise the node's own category is used.
func (r *Registry) Category(n schema.Node) schema.NodeCategory {
	if s, ok := r.Get(n.Type); ok {
		return s.Category
	}
	return n.Category
}

// IsTerminal reports whether n ends a path. Unknown types fall back to the
// output category.
func (r *Registry) IsTerminal(n schema.Node) bool {
	if s, ok := r.Get(n.Type); ok {
		return s.IsTerminal()
	}
	return n.Category == schema.CategoryOutput
}

// IsAction reports whether n performs an external side effect.
func (r *Registry) IsAction(n schema.Node) bool {
	s, ok := r.Get(n.Type)
	return ok && s.Action
}

// IsBranching reports whether n only routes its input between handles.
func (r *Registry) IsBranching(n schema.Node) bool {
	s, ok := r.Get(n.Type)
	return ok && s.Branching
}

// DefaultType returns the fallback type for a category, used when a node
// lacks a type or carries one the registry does not know.
func DefaultType(c schema.NodeCategory) string {
	switch c {
	case schema.CategoryTrigger:
		return TypeManualTrigger
	case schema.CategoryLogic:
		return TypeNoop
	case schema.CategoryData:
		return TypeSet
	case schema.CategoryOutput:
		return TypeLog
	case schema.CategoryAI:
		return TypeLLMPrompt
	default:
		return ""
	}
}

// Placeholder returns the value used for a required config key that has no
// schema default.
func Placeholder(key string) any {
	switch key {
	case "method":
		return "GET"
	case "timeout", "timeout_ms":
		return 30000
	case "duration", "delay", "retry_delay":
		return 1000
	case "max_retries", "retries":
		return 3
	default:
		return ""
	}
}
