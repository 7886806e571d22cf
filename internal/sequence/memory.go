package sequence

import (
	"context"
	"sync"
)

// MemoryCounterStore is an in-process counter store used in tests and
// single-node development setups.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryCounterStore constructs the store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]int64)}
}

// Next atomically increments and returns the counter value.
func (s *MemoryCounterStore) Next(ctx context.Context, storeID string, kind Kind, period string) (int64, error) {
	key := counterKey(storeID, kind, period)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
