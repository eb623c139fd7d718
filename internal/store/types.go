package store

import (
	"time"

	"github.com/rendis/flowcore/pkg/schema"
)

// RunFilter narrows ListRuns. Listed runs carry no logs.
type RunFilter struct {
	GraphID string
	Status  schema.RunStatus
	Since   *time.Time
	Limit   int
}

// AgentSession is the latest persisted state of an agent session.
type AgentSession struct {
	ID           string             `json:"id"`
	Goal         string             `json:"goal"`
	Status       schema.AgentStatus `json:"status"`
	Iterations   int                `json:"iterations"`
	FinalState   map[string]any     `json:"final_state,omitempty"`
	ActionsTaken []string           `json:"actions_taken,omitempty"`
	Error        string             `json:"error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// SessionFilter narrows ListAgentSessions.
type SessionFilter struct {
	Status schema.AgentStatus
	Limit  int
}

// AgentIteration is the snapshot recorded after one loop pass.
type AgentIteration struct {
	SessionID    string                 `json:"session_id"`
	Iteration    int                    `json:"iteration"`
	Phase        string                 `json:"phase"`
	Status       schema.AgentStatus     `json:"status"`
	State        map[string]any         `json:"state,omitempty"`
	History      []schema.ReasoningStep `json:"history,omitempty"`
	ActionsTaken []string               `json:"actions_taken,omitempty"`
	RecordedAt   time.Time              `json:"recorded_at"`
}
