package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotFound is returned when a session has no artifact of that name.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored version.
type Artifact struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	MediaType string    `json:"media_type"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Store saves and reads artifacts.
type Store interface {
	// Save appends a new version and returns its number, starting at 1.
	Save(ctx context.Context, sessionID string, a Artifact) (int, error)
	// Get returns the latest version.
	Get(ctx context.Context, sessionID, name string) (Artifact, error)
	// List returns the artifact names of a session, sorted.
	List(ctx context.Context, sessionID string) ([]string, error)
	Delete(ctx context.Context, sessionID, name string) error
}

// InMemoryStore keeps artifacts in process memory. Data is copied on save
// and on retrieval.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]Artifact // sessionID -> name -> versions
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]Artifact)}
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, sessionID string, a Artifact) (int, error) {
	if sessionID == "" || a.Name == "" {
		return 0, errors.New("artifact: session id and name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[sessionID]; !ok {
		s.artifacts[sessionID] = make(map[string][]Artifact)
	}
	versions := s.artifacts[sessionID][a.Name]

	a.Version = len(versions) + 1
	a.Data = clone(a.Data)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.artifacts[sessionID][a.Name] = append(versions, a)
	return a.Version, nil
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, sessionID, name string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.artifacts[sessionID][name]
	if len(versions) == 0 {
		return Artifact{}, ErrNotFound
	}
	a := versions[len(versions)-1]
	a.Data = clone(a.Data)
	return a, nil
}

// List implements Store.
func (s *InMemoryStore) List(_ context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.artifacts[sessionID]))
	for name := range s.artifacts[sessionID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, sessionID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[sessionID][name]; !ok {
		return ErrNotFound
	}
	delete(s.artifacts[sessionID], name)
	return nil
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// CodeDisplayer saves displayed code as markdown artifacts named
// code-<n>.md. It satisfies the agent's Displayer interface.
type CodeDisplayer struct {
	Store     Store
	SessionID string

	n atomic.Int64
}

// Display stores code as the next code artifact.
func (d *CodeDisplayer) Display(ctx context.Context, code string) error {
	name := fmt.Sprintf("code-%d.md", d.n.Add(1))
	_, err := d.Store.Save(ctx, d.SessionID, Artifact{
		Name:      name,
		MediaType: "text/markdown",
		Data:      []byte(code),
	})
	return err
}
