// Package memory keeps bounded conversation history per session for the
// llm_prompt node and the agent loop.
package memory

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxStored caps how many turns a session retains.
const DefaultMaxStored = 200

// Turn is one message in a session.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store is a session-keyed conversation memory. GetHistory returns at most
// maxTurns of the most recent turns, oldest first; maxTurns <= 0 returns all
// retained turns.
type Store interface {
	GetHistory(ctx context.Context, sessionID string, maxTurns int) ([]Turn, error)
	Append(ctx context.Context, sessionID, role, content string) error
	Clear(ctx context.Context, sessionID string) error
}

func window(turns []Turn, maxTurns int) []Turn {
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
