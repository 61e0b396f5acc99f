package clickhouse

import (
	"context"
	"fmt"
	"time"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// ExchangeStore implements storage.ExchangeStore using ClickHouse.
type ExchangeStore struct {
	conn *Conn
}

// NewExchangeStore creates a new ExchangeStore.
func NewExchangeStore(conn *Conn) *ExchangeStore {
	return &ExchangeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExchangeStore = (*ExchangeStore)(nil)

// Insert adds an exchange. MergeTree does not enforce uniqueness, so the
// exchange_id is checked before the write.
func (s *ExchangeStore) Insert(ctx context.Context, e *domain.Exchange) (err error) {
	if e == nil || e.ExchangeID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("insert_exchange", start, err) }()

	exists, err := s.exists(ctx, e.ExchangeID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO exchanges (
			exchange_id, agent_id, user_id, multiplier, next_multiplier,
			response_latency_ms, timed_out, won, prompt_chars, reply_chars, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	err = batch.Append(
		e.ExchangeID, e.AgentID, e.UserID, e.Multiplier, e.NextMultiplier,
		uint64(e.ResponseLatency), e.TimedOut, e.Won, uint32(e.PromptChars), uint32(e.ReplyChars),
		uint64(e.CreatedAt),
	)
	if err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAgent returns exchanges for agentID ordered by created_at ASC.
func (s *ExchangeStore) GetByAgent(ctx context.Context, agentID string) (_ []*domain.Exchange, err error) {
	start := time.Now()
	defer func() { observe("get_exchanges", start, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT exchange_id, agent_id, user_id, multiplier, next_multiplier,
			response_latency_ms, timed_out, won, prompt_chars, reply_chars, created_at
		FROM exchanges
		WHERE agent_id = ?
		ORDER BY created_at ASC, exchange_id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var result []*domain.Exchange
	for rows.Next() {
		var (
			e                       domain.Exchange
			latency, createdAt      uint64
			promptChars, replyChars uint32
		)
		if err := rows.Scan(
			&e.ExchangeID, &e.AgentID, &e.UserID, &e.Multiplier, &e.NextMultiplier,
			&latency, &e.TimedOut, &e.Won, &promptChars, &replyChars, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.ResponseLatency = int64(latency)
		e.PromptChars = int(promptChars)
		e.ReplyChars = int(replyChars)
		e.CreatedAt = int64(createdAt)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return result, nil
}

func (s *ExchangeStore) exists(ctx context.Context, exchangeID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM exchanges WHERE exchange_id = ?`, exchangeID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
