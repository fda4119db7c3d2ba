package alerting

import (
	"context"
	"sync"

	"github.com/cwyuen/hk-monitor/internal/reading"
)

// MemoryStateStore keeps alert state in process memory. A restart resets
// deduplication, which is the default behaviour; use RedisStateStore when
// cross-restart dedup is wanted.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[reading.Key]AlertState
}

// NewMemoryStateStore creates an in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[reading.Key]AlertState)}
}

// Get retrieves the alert state for a key
func (s *MemoryStateStore) Get(_ context.Context, key reading.Key) (*AlertState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

// Set saves the alert state for a key
func (s *MemoryStateStore) Set(_ context.Context, key reading.Key, state *AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = *state
	return nil
}

// All returns every stored alert state keyed by history key string
func (s *MemoryStateStore) All(_ context.Context) (map[string]*AlertState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make(map[string]*AlertState, len(s.states))
	for key, state := range s.states {
		copied := state
		states[key.String()] = &copied
	}
	return states, nil
}
