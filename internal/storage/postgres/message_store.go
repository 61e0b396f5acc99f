package postgres

import (
	"context"
	"fmt"
	"time"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// MessageStore implements storage.MessageStore using PostgreSQL.
// Conversation order is the bigserial seq, not created_at.
type MessageStore struct {
	pool *Pool
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(pool *Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

var _ storage.MessageStore = (*MessageStore)(nil)

// Insert appends a message. Returns ErrDuplicateKey if id exists.
func (s *MessageStore) Insert(ctx context.Context, m *domain.StoredMessage) (err error) {
	if m == nil || m.ID == "" || m.AgentID == "" || m.UserID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_message", start, err) }()

	createdAt := m.CreatedAt
	if createdAt == 0 {
		createdAt = nowMs()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, agent_id, user_id, content, is_bot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.AgentID, m.UserID, m.Content, m.IsBot, createdAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetByAgent returns the conversation with agentID in insertion order.
func (s *MessageStore) GetByAgent(ctx context.Context, agentID string) (_ []*domain.StoredMessage, err error) {
	start := time.Now()
	defer func() { observe("get_messages", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.agent_id, m.user_id, COALESCE(u.username, ''), m.content, m.is_bot, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.agent_id = $1
		ORDER BY m.seq ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("get messages by agent: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.StoredMessage, 0)
	for rows.Next() {
		var m domain.StoredMessage
		if err := rows.Scan(&m.ID, &m.AgentID, &m.UserID, &m.Username, &m.Content, &m.IsBot, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}
