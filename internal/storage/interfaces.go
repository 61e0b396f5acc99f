package storage

import (
	"context"

	"paidchat/internal/domain"
)

// UserStore provides access to users storage.
type UserStore interface {
	// Upsert creates the user or updates its username.
	Upsert(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AgentStore provides access to agents storage.
type AgentStore interface {
	// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, a *domain.Agent) error

	// GetByID retrieves an agent. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Agent, error)

	// List returns all agents ordered by created_at ASC, id ASC.
	List(ctx context.Context) ([]*domain.Agent, error)
}

// MessageStore provides access to messages storage.
type MessageStore interface {
	// Insert appends a message. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, m *domain.StoredMessage) error

	// GetByAgent returns the conversation with agentID in insertion order,
	// with usernames resolved.
	GetByAgent(ctx context.Context, agentID string) ([]*domain.StoredMessage, error)
}

// CostStore provides access to per-agent cost multipliers.
type CostStore interface {
	// GetOrCreate returns the multiplier of agentID, creating it at initial
	// if none exists.
	GetOrCreate(ctx context.Context, agentID string, initial float64) (float64, error)

	// Set stores the multiplier of agentID.
	Set(ctx context.Context, agentID string, multiplier float64) error
}

// ExchangeStore provides access to exchange analytics.
type ExchangeStore interface {
	// Insert adds an exchange. Returns ErrDuplicateKey if exchange_id exists.
	Insert(ctx context.Context, e *domain.Exchange) error

	// GetByAgent returns exchanges for agentID ordered by created_at ASC.
	GetByAgent(ctx context.Context, agentID string) ([]*domain.Exchange, error)
}
