package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// AgentStore implements storage.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *Pool
}

// NewAgentStore creates a new AgentStore.
func NewAgentStore(pool *Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

var _ storage.AgentStore = (*AgentStore)(nil)

const agentColumns = `id, owner_id, name, avatar, description, system_prompt,
	restricted_phrases, message_cost, initial_prize_pool, prize_pool, created_at, updated_at`

// Insert adds a new agent. Returns ErrDuplicateKey if id exists.
func (s *AgentStore) Insert(ctx context.Context, a *domain.Agent) (err error) {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_agent", start, err) }()

	phrases := a.RestrictedPhrases
	if phrases == nil {
		phrases = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		a.ID, a.OwnerID, a.Name, a.Avatar, a.Description, a.SystemPrompt,
		phrases, a.MessageCost, a.InitialPrizePool, a.PrizePool, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(ctx context.Context, id string) (_ *domain.Agent, err error) {
	start := time.Now()
	defer func() { observe("get_agent", start, err) }()

	row := s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent by id: %w", err)
	}
	return a, nil
}

// List returns all agents ordered by created_at ASC, id ASC.
func (s *AgentStore) List(ctx context.Context) (_ []*domain.Agent, err error) {
	start := time.Now()
	defer func() { observe("list_agents", start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var result []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return result, nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.Avatar, &a.Description, &a.SystemPrompt,
		&a.RestrictedPhrases, &a.MessageCost, &a.InitialPrizePool, &a.PrizePool,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
