package streaming

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rendis/flowcore/pkg/schema"
)

const defaultChannelBuffer = 64

type subscriber struct {
	ch     chan NodeEvent
	filter Filter
}

// MemoryHub is an in-process Hub. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

// NewMemoryHub creates an empty MemoryHub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]*subscriber)}
}

func (h *MemoryHub) Publish(ctx context.Context, event NodeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *MemoryHub) Subscribe(ctx context.Context, filter Filter) (<-chan NodeEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.seq.Add(1)
	ch := make(chan NodeEvent, defaultChannelBuffer)

	h.mu.Lock()
	h.subs[id] = &subscriber{ch: ch, filter: filter}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Transition publishes a node status change. Its signature matches
// engine.TransitionHook.
func (h *MemoryHub) Transition(ctx context.Context, runID, nodeID string, from, to schema.NodeStatus) {
	_ = h.Publish(ctx, NodeEvent{RunID: runID, NodeID: nodeID, From: from, Status: to})
}

// Subscribers reports the number of active subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
