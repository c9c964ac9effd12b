package memory

import (
	"context"
	"sync"

	"github.com/agent2000/agent2000/pkg/history"
)

// Store implements history.Store in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*history.Entry
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*history.Entry),
	}
}

// Save keeps a copy of e so later changes by the caller are not visible.
func (s *Store) Save(ctx context.Context, e *history.Entry) error {
	copied := e.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.ID] = copied
	return nil
}

// LoadAll returns copies of every stored entry.
func (s *Store) LoadAll(ctx context.Context) ([]*history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*history.Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*history.Entry)
	return nil
}
