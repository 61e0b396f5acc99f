package stats

import (
	"context"
	"errors"
	"fmt"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// ErrNoExchanges is returned when an agent has no recorded exchanges.
var ErrNoExchanges = errors.New("no exchanges recorded")

// Aggregator computes agent statistics from the exchange store.
type Aggregator struct {
	exchanges storage.ExchangeStore
}

// NewAggregator creates a new Aggregator.
func NewAggregator(exchanges storage.ExchangeStore) *Aggregator {
	return &Aggregator{exchanges: exchanges}
}

// ComputeAgent summarizes all exchanges of agentID.
// Returns ErrNoExchanges if nothing was recorded.
func (a *Aggregator) ComputeAgent(ctx context.Context, agentID string) (*domain.AgentStats, error) {
	exchanges, err := a.exchanges.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load exchanges: %w", err)
	}
	if len(exchanges) == 0 {
		return nil, ErrNoExchanges
	}
	return computeFromExchanges(agentID, exchanges), nil
}
