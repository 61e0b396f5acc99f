package memory

import (
	"context"
	"sync"

	"paidchat/internal/storage"
)

// CostStore is an in-memory implementation of storage.CostStore.
type CostStore struct {
	mu   sync.Mutex
	data map[string]float64
}

// NewCostStore creates a new in-memory cost store.
func NewCostStore() *CostStore {
	return &CostStore{data: make(map[string]float64)}
}

// GetOrCreate returns the multiplier of agentID, creating it at initial.
func (s *CostStore) GetOrCreate(_ context.Context, agentID string, initial float64) (float64, error) {
	if agentID == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.data[agentID]; ok {
		return m, nil
	}
	s.data[agentID] = initial
	return initial, nil
}

// Set stores the multiplier of agentID.
func (s *CostStore) Set(_ context.Context, agentID string, multiplier float64) error {
	if agentID == "" || multiplier <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[agentID] = multiplier
	return nil
}

var _ storage.CostStore = (*CostStore)(nil)
