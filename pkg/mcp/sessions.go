package mcp

import "sync"

// SessionRegistry maps agent session IDs to MCP client session IDs.
// Populated while a flow.agent call is in flight.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // agent session ID → client session ID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates an agent session with a client session.
// An existing mapping is overwritten (reconnect).
func (r *SessionRegistry) Register(agentSessionID, clientSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[agentSessionID] = clientSessionID
}

// SessionFor returns the client session for the given agent session.
func (r *SessionRegistry) SessionFor(agentSessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[agentSessionID]
	return sid, ok
}

// Unregister drops the mapping of one agent session.
func (r *SessionRegistry) Unregister(agentSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, agentSessionID)
}

// Remove deletes all mappings to the given client session.
// Called when a client disconnects.
func (r *SessionRegistry) Remove(clientSessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for aid, sid := range r.sessions {
		if sid == clientSessionID {
			delete(r.sessions, aid)
		}
	}
}
