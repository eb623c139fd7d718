package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Store.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]Turn
	maxStored int
	now       func() time.Time
}

// NewInMemoryStore creates a store retaining at most maxStored turns per
// session (DefaultMaxStored when <= 0).
func NewInMemoryStore(maxStored int) *InMemoryStore {
	if maxStored <= 0 {
		maxStored = DefaultMaxStored
	}
	return &InMemoryStore{
		sessions:  make(map[string][]Turn),
		maxStored: maxStored,
		now:       time.Now,
	}
}

func (s *InMemoryStore) GetHistory(_ context.Context, sessionID string, maxTurns int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.sessions[sessionID], maxTurns), nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.sessions[sessionID], Turn{Role: role, Content: content, At: s.now().UTC()})
	if len(turns) > s.maxStored {
		turns = append([]Turn(nil), turns[len(turns)-s.maxStored:]...)
	}
	s.sessions[sessionID] = turns
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
