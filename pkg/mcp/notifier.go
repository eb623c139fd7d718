package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcore/pkg/schema"
)

// SessionNotifier pushes agent progress to the client that started the
// session. It satisfies reasoning.IterationHook.
type SessionNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewSessionNotifier creates a notifier over the server's client sessions.
func NewSessionNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *SessionNotifier {
	return &SessionNotifier{mcpServer: mcpServer, sessions: sessions}
}

// OnIteration sends one notifications/message per loop pass.
// Best-effort: returns nil if the client is gone.
func (n *SessionNotifier) OnIteration(_ context.Context, snap *schema.AgentSnapshot) error {
	clientID, ok := n.sessions.SessionFor(snap.SessionID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, "notifications/message", progressPayload(snap))
	if errors.Is(err, server.ErrSessionNotFound) {
		n.sessions.Remove(clientID)
		return nil
	}
	return err
}

func progressPayload(snap *schema.AgentSnapshot) map[string]any {
	data := map[string]any{
		"session_id": snap.SessionID,
		"iteration":  snap.Iteration,
		"phase":      snap.Phase,
		"status":     string(snap.Status),
		"actions":    len(snap.ActionsTaken),
	}
	if n := len(snap.History); n > 0 {
		last := snap.History[n-1]
		data["action"] = last.Action
		if last.Error != "" {
			data["error"] = last.Error
		}
	}
	return map[string]any{
		"level":  "info",
		"logger": "flowcore.agent",
		"data":   data,
	}
}
