package marker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[Key]struct{}
}

// NewMemoryStore returns an empty store, optionally seeded with keys.
func NewMemoryStore(keys ...Key) *MemoryStore {
	s := &MemoryStore{keys: make(map[Key]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *MemoryStore) Exists(_ context.Context, key Key) (bool, error) {
	if err := validate(key); err != nil {
		return false, fmt.Errorf("%w: %q", err, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) Create(_ context.Context, key Key) error {
	if err := validate(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Key, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
