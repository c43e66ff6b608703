// Package memory provides an in-memory core.DocumentStore for tests.
package memory

import (
	"context"
	"sync"

	"github.com/crewtrack/attendance-engine/core"
)

// Store keeps documents in a map. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ core.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Load returns the document body, or (nil, nil) when never saved.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[name]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// Save replaces the document body.
func (s *Store) Save(_ context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(body))
	copy(stored, body)
	s.docs[name] = stored
	return nil
}

// Seed writes a raw document directly. Test hook for malformed bodies.
func (s *Store) Seed(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = body
}
