// Package streaming fans node status transitions out to live subscribers.
package streaming

import (
	"context"
	"slices"

	"github.com/rendis/flowcore/pkg/schema"
)

// NodeEvent is one node status change within a run.
type NodeEvent struct {
	RunID  string            `json:"run_id"`
	NodeID string            `json:"node_id"`
	From   schema.NodeStatus `json:"from"`
	Status schema.NodeStatus `json:"status"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	RunID    string              `json:"run_id,omitempty"`
	Statuses []schema.NodeStatus `json:"statuses,omitempty"`
}

func (f Filter) matches(e NodeEvent) bool {
	if f.RunID != "" && f.RunID != e.RunID {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, e.Status)
}

// Hub provides pub/sub for node events.
type Hub interface {
	Publish(ctx context.Context, event NodeEvent) error
	Subscribe(ctx context.Context, filter Filter) (<-chan NodeEvent, func(), error)
}
