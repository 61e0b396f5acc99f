package memory

import (
	"context"
	"sync"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// MessageStore is an in-memory implementation of storage.MessageStore.
// Usernames are resolved from users when set, else the stored value is kept.
type MessageStore struct {
	mu      sync.RWMutex
	ids     map[string]bool
	byAgent map[string][]*domain.StoredMessage
	users   storage.UserStore
}

// NewMessageStore creates a new in-memory message store. users may be nil.
func NewMessageStore(users storage.UserStore) *MessageStore {
	return &MessageStore{
		ids:     make(map[string]bool),
		byAgent: make(map[string][]*domain.StoredMessage),
		users:   users,
	}
}

// Insert appends a message. Returns ErrDuplicateKey if id exists.
func (s *MessageStore) Insert(_ context.Context, m *domain.StoredMessage) error {
	if m == nil || m.ID == "" || m.AgentID == "" || m.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[m.ID] {
		return storage.ErrDuplicateKey
	}
	msgCopy := *m
	s.ids[m.ID] = true
	s.byAgent[m.AgentID] = append(s.byAgent[m.AgentID], &msgCopy)
	return nil
}

// GetByAgent returns the conversation with agentID in insertion order.
func (s *MessageStore) GetByAgent(ctx context.Context, agentID string) ([]*domain.StoredMessage, error) {
	s.mu.RLock()
	rows := s.byAgent[agentID]
	result := make([]*domain.StoredMessage, 0, len(rows))
	for _, m := range rows {
		msgCopy := *m
		result = append(result, &msgCopy)
	}
	s.mu.RUnlock()

	if s.users != nil {
		for _, m := range result {
			if u, err := s.users.GetByID(ctx, m.UserID); err == nil {
				m.Username = u.Username
			}
		}
	}
	return result, nil
}

var _ storage.MessageStore = (*MessageStore)(nil)
