package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore keeps counters in a map. Counters are lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]time.Time)}
}

func (s *MemoryStore) Attempts(key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempts := s.data[key]
	out := make([]time.Time, len(attempts))
	copy(out, attempts)
	return out, nil
}

func (s *MemoryStore) SetAttempts(key string, attempts []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(attempts) == 0 {
		delete(s.data, key)
		return nil
	}
	stored := make([]time.Time, len(attempts))
	copy(stored, attempts)
	s.data[key] = stored
	return nil
}
