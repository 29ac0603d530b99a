package session

import (
	"context"
	"sync"
)

// InMemoryStore is a volatile Store keeping transcripts in a process local
// map. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Returned slices are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
}

// NewInMemoryStore constructs an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]Entry)}
}

// Append adds an entry to its session, creating the session lazily.
func (s *InMemoryStore) Append(_ context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[e.SessionID] = append(s.sessions[e.SessionID], e)
	return nil
}

// Entries returns the session transcript in append order.
func (s *InMemoryStore) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.sessions[sessionID]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, nil
}

// Sessions lists the known session ids.
func (s *InMemoryStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
