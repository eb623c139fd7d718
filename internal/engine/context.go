package engine

import (
	"github.com/rendis/flowcore/pkg/schema"
)

// TriggerKey is the reserved key holding the trigger payload.
const TriggerKey = "$trigger"

// ExecutionContext holds the outputs of one run, keyed by node id, plus the
// trigger payload under TriggerKey. It is owned by a single run.
type ExecutionContext struct {
	outputs map[string]any
	handles map[string]string
	status  map[string]schema.NodeStatus
}

// NewExecutionContext starts a context for a run with the given payload.
func NewExecutionContext(trigger any) *ExecutionContext {
	return &ExecutionContext{
		outputs: map[string]any{TriggerKey: trigger},
		handles: make(map[string]string),
		status:  make(map[string]schema.NodeStatus),
	}
}

// Output returns the stored output of a node.
func (c *ExecutionContext) Output(nodeID string) (any, bool) {
	v, ok := c.outputs[nodeID]
	return v, ok
}

// Trigger returns the trigger payload.
func (c *ExecutionContext) Trigger() any {
	return c.outputs[TriggerKey]
}

// record stores a successful output. branched marks a branching node, whose
// chosen handle may be empty when no branch was taken.
func (c *ExecutionContext) record(nodeID string, output any, handle string, branched bool) {
	c.outputs[nodeID] = output
	c.status[nodeID] = schema.NodeStatusSuccess
	if branched {
		c.handles[nodeID] = handle
	}
}

func (c *ExecutionContext) setStatus(nodeID string, s schema.NodeStatus) {
	c.status[nodeID] = s
}

// State returns a node's current status; nodes not yet reached are pending.
func (c *ExecutionContext) State(nodeID string) schema.NodeStatus {
	if s, ok := c.status[nodeID]; ok {
		return s
	}
	return schema.NodeStatusPending
}

// edgeLive reports whether e carries data on the success path: its source
// succeeded, it is not an error route, and for a branching source its
// handle is the chosen one.
func (c *ExecutionContext) edgeLive(e schema.Edge) bool {
	if c.status[e.Source] != schema.NodeStatusSuccess || e.SourceHandle == schema.HandleError {
		return false
	}
	if handle, branched := c.handles[e.Source]; branched {
		return handle != "" && e.SourceHandle == handle
	}
	return true
}

// isLive reports whether nodeID should run: it has no incoming edges,
// or at least one incoming edge is live.
func (c *ExecutionContext) isLive(plan *Plan, nodeID string) bool {
	in := plan.Incoming(nodeID)
	if len(in) == 0 {
		return true
	}
	for _, e := range in {
		if c.edgeLive(e) {
			return true
		}
	}
	return false
}

// resolveInput builds a node's input: the trigger payload when it has no
// incoming data edges, the single source's output when one source feeds it,
// and a map of source id to output over the live sources otherwise.
func (c *ExecutionContext) resolveInput(plan *Plan, nodeID string) any {
	var sources []string
	seen := make(map[string]bool)
	for _, e := range plan.Incoming(nodeID) {
		if e.SourceHandle == schema.HandleError || seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		sources = append(sources, e.Source)
	}

	switch len(sources) {
	case 0:
		return c.Trigger()
	case 1:
		return c.outputs[sources[0]]
	}

	merged := make(map[string]any, len(sources))
	for _, e := range plan.Incoming(nodeID) {
		if _, done := merged[e.Source]; done || !c.edgeLive(e) {
			continue
		}
		merged[e.Source] = c.outputs[e.Source]
	}
	return merged
}
