package schema

import "time"

// RunStatus is the terminal state of a graph run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// NodeStatus is the lifecycle state of a node within a run.
type NodeStatus string

const (
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)

// ExecutionLogEntry records one node's passage through a run.
type ExecutionLogEntry struct {
	NodeID     string     `json:"node_id"`
	NodeType   string     `json:"node_type"`
	Status     NodeStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
	Input      any        `json:"input,omitempty"`
	Output     any        `json:"output,omitempty"`
	Handle     string     `json:"handle,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorRoute bool       `json:"error_route,omitempty"`
}

// RunRecord is the outcome of one graph execution.
type RunRecord struct {
	ID          string              `json:"id"`
	GraphID     string              `json:"graph_id,omitempty"`
	Status      RunStatus           `json:"status"`
	Input       any                 `json:"input,omitempty"`
	FinalOutput any                 `json:"final_output,omitempty"`
	Error       string              `json:"error,omitempty"`
	FailedNode  string              `json:"failed_node,omitempty"`
	Logs        []ExecutionLogEntry `json:"logs"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// Entry returns the last log entry for nodeID.
func (r *RunRecord) Entry(nodeID string) (ExecutionLogEntry, bool) {
	for i := len(r.Logs) - 1; i >= 0; i-- {
		if r.Logs[i].NodeID == nodeID {
			return r.Logs[i], true
		}
	}
	return ExecutionLogEntry{}, false
}

// AgentStatus is the terminal state of an agent session.
type AgentStatus string

const (
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusStopped   AgentStatus = "stopped"
	AgentStatusFailed    AgentStatus = "failed"
)

// ReasoningStep is one entry of an agent's history.
type ReasoningStep struct {
	Iteration  int       `json:"iteration"`
	Thought    string    `json:"thought,omitempty"`
	Action     string    `json:"action,omitempty"`
	Input      any       `json:"input,omitempty"`
	Confidence float64   `json:"confidence"`
	Continue   bool      `json:"continue"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// AgentSnapshot is the state handed to the iteration hook after each pass.
type AgentSnapshot struct {
	SessionID    string          `json:"session_id"`
	Goal         string          `json:"goal"`
	Iteration    int             `json:"iteration"`
	Phase        string          `json:"phase"`
	Status       AgentStatus     `json:"status"`
	State        map[string]any  `json:"state"`
	History      []ReasoningStep `json:"history"`
	ActionsTaken []string        `json:"actions_taken"`
}
