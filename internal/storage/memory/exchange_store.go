package memory

import (
	"context"
	"sort"
	"sync"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// ExchangeStore is an in-memory implementation of storage.ExchangeStore.
type ExchangeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Exchange
}

// NewExchangeStore creates a new in-memory exchange store.
func NewExchangeStore() *ExchangeStore {
	return &ExchangeStore{data: make(map[string]*domain.Exchange)}
}

// Insert adds an exchange. Returns ErrDuplicateKey if exchange_id exists.
func (s *ExchangeStore) Insert(_ context.Context, e *domain.Exchange) error {
	if e == nil || e.ExchangeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ExchangeID]; exists {
		return storage.ErrDuplicateKey
	}
	exCopy := *e
	s.data[e.ExchangeID] = &exCopy
	return nil
}

// GetByAgent returns exchanges for agentID ordered by created_at ASC.
func (s *ExchangeStore) GetByAgent(_ context.Context, agentID string) ([]*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Exchange
	for _, e := range s.data {
		if e.AgentID == agentID {
			exCopy := *e
			result = append(result, &exCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ExchangeID < result[j].ExchangeID
	})
	return result, nil
}

var _ storage.ExchangeStore = (*ExchangeStore)(nil)
