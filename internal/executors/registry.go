package executors

import (
	"slices"
	"sync"

	"github.com/rendis/flowcore/pkg/schema"
)

// Registry maps a node type tag to its executor. It is populated at startup
// and only read afterwards.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]NodeExecutor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]NodeExecutor)}
}

// Register binds an executor to a node type. Returns an error on duplicates.
func (r *Registry) Register(nodeType string, exec NodeExecutor) error {
	if exec == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "executor for %q is nil", nodeType)
	}
	if nodeType == "" {
		return schema.NewError(schema.ErrCodeValidation, "executor node type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[nodeType]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "executor for %q already registered", nodeType)
	}
	r.executors[nodeType] = exec
	return nil
}

// Get returns the executor for a node type.
func (r *Registry) Get(nodeType string) (NodeExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[nodeType]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecutorUnavailable, "no executor registered for node type %q", nodeType)
	}
	return exec, nil
}

func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[nodeType]
	return ok
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
