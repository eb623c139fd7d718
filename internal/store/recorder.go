package store

import (
	"context"
	"time"

	"github.com/rendis/flowcore/pkg/schema"
)

// AgentRecorder persists agent progress after every loop pass. It
// satisfies reasoning.IterationHook.
type AgentRecorder struct {
	store Store
	now   func() time.Time
}

// NewAgentRecorder creates a recorder writing to s.
func NewAgentRecorder(s Store) *AgentRecorder {
	return &AgentRecorder{store: s, now: time.Now}
}

// OnIteration upserts the session row, then records the snapshot.
func (r *AgentRecorder) OnIteration(ctx context.Context, snap *schema.AgentSnapshot) error {
	now := r.now().UTC()
	sess := &AgentSession{
		ID:           snap.SessionID,
		Goal:         snap.Goal,
		Status:       snap.Status,
		Iterations:   snap.Iteration,
		FinalState:   snap.State,
		ActionsTaken: snap.ActionsTaken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if snap.Status == schema.AgentStatusFailed && len(snap.History) > 0 {
		sess.Error = snap.History[len(snap.History)-1].Error
	}
	if err := r.store.SaveAgentSession(ctx, sess); err != nil {
		return err
	}
	return r.store.SaveAgentIteration(ctx, &AgentIteration{
		SessionID:    snap.SessionID,
		Iteration:    snap.Iteration,
		Phase:        snap.Phase,
		Status:       snap.Status,
		State:        snap.State,
		History:      snap.History,
		ActionsTaken: snap.ActionsTaken,
		RecordedAt:   now,
	})
}
