package postgres

import (
	"context"
	"fmt"
	"time"

	"paidchat/internal/storage"
)

// CostStore implements storage.CostStore using PostgreSQL.
type CostStore struct {
	pool *Pool
}

// NewCostStore creates a new CostStore.
func NewCostStore(pool *Pool) *CostStore {
	return &CostStore{pool: pool}
}

var _ storage.CostStore = (*CostStore)(nil)

// GetOrCreate returns the multiplier of agentID, creating it at initial.
// Concurrent first calls converge on a single row.
func (s *CostStore) GetOrCreate(ctx context.Context, agentID string, initial float64) (_ float64, err error) {
	if agentID == "" {
		return 0, storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("get_or_create_cost", start, err) }()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_costs (agent_id, multiplier, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO NOTHING
	`, agentID, initial, nowMs())
	if err != nil {
		return 0, fmt.Errorf("create chat cost: %w", err)
	}

	var m float64
	err = s.pool.QueryRow(ctx, `SELECT multiplier FROM chat_costs WHERE agent_id = $1`, agentID).Scan(&m)
	if err != nil {
		return 0, fmt.Errorf("get chat cost: %w", err)
	}
	return m, nil
}

// Set stores the multiplier of agentID.
func (s *CostStore) Set(ctx context.Context, agentID string, multiplier float64) (err error) {
	if agentID == "" || multiplier <= 0 {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("set_cost", start, err) }()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_costs (agent_id, multiplier, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id) DO UPDATE SET multiplier = EXCLUDED.multiplier, updated_at = EXCLUDED.updated_at
	`, agentID, multiplier, nowMs())
	if err != nil {
		return fmt.Errorf("set chat cost: %w", err)
	}
	return nil
}
