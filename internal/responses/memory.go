package responses

import (
	"context"
	"sync"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]Response
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Response)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.data[key]
	out := make([]Response, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, list []Response) error {
	cp := make([]Response, len(list))
	copy(cp, list)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Close() error { return nil }
