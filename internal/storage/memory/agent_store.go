package memory

import (
	"context"
	"sort"
	"sync"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// AgentStore is an in-memory implementation of storage.AgentStore.
type AgentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Agent
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{data: make(map[string]*domain.Agent)}
}

// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
func (s *AgentStore) Insert(_ context.Context, a *domain.Agent) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[a.ID] = copyAgent(a)
	return nil
}

// GetByID retrieves an agent. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyAgent(a), nil
}

// List returns all agents ordered by created_at ASC, id ASC.
func (s *AgentStore) List(_ context.Context) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Agent, 0, len(s.data))
	for _, a := range s.data {
		result = append(result, copyAgent(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func copyAgent(a *domain.Agent) *domain.Agent {
	agentCopy := *a
	agentCopy.RestrictedPhrases = append([]string(nil), a.RestrictedPhrases...)
	return &agentCopy
}

var _ storage.AgentStore = (*AgentStore)(nil)
