package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/rendis/flowcore/pkg/schema"
)

// TransitionHook observes a node status change. Hooks must not block.
type TransitionHook func(ctx context.Context, runID, nodeID string, from, to schema.NodeStatus)

// NodeFSM guards node status transitions within a run.
type NodeFSM struct {
	mu    sync.RWMutex
	hooks []TransitionHook
}

// NewNodeFSM creates a NodeFSM with no hooks.
func NewNodeFSM() *NodeFSM {
	return &NodeFSM{}
}

// OnTransition registers a hook called after every accepted transition.
func (f *NodeFSM) OnTransition(h TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, h)
}

// Transition validates from -> to and notifies hooks.
func (f *NodeFSM) Transition(ctx context.Context, runID, nodeID string, from, to schema.NodeStatus) error {
	if !slices.Contains(ValidNodeTransitions[from], to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid node transition: %s -> %s", from, to).
			WithNode(nodeID).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	f.mu.RLock()
	hooks := f.hooks
	f.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, runID, nodeID, from, to)
	}
	return nil
}

// ValidNodeTransitions defines the allowed node status transitions.
var ValidNodeTransitions = map[schema.NodeStatus][]schema.NodeStatus{
	schema.NodeStatusPending: {schema.NodeStatusRunning, schema.NodeStatusSkipped},
	schema.NodeStatusRunning: {schema.NodeStatusSuccess, schema.NodeStatusFailed},
	schema.NodeStatusSuccess: {},
	schema.NodeStatusFailed:  {},
	schema.NodeStatusSkipped: {},
}
