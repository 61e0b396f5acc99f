// Package balance decides whether a wallet can afford the next message.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"paidchat/internal/chain"
	"paidchat/internal/cost"
	"paidchat/internal/domain"
	"paidchat/internal/observability"
	"paidchat/internal/payment"
)

// IsSufficient reports balance >= total. Nil values count as zero.
func IsSufficient(balance, total *big.Int) bool {
	b := balance
	if b == nil {
		b = new(big.Int)
	}
	t := total
	if t == nil {
		t = new(big.Int)
	}
	return b.Cmp(t) >= 0
}

// ChainTable resolves supported chains by id.
type ChainTable interface {
	Lookup(chainID int64) (domain.Chain, bool)
}

// Reader reads a wallet balance in wei.
type Reader interface {
	GetBalance(ctx context.Context, address string) (*big.Int, error)
}

// Estimator prices a payment.
type Estimator interface {
	Estimate(ctx context.Context, req cost.Request) (domain.CostEstimate, error)
}

// Inputs are the values an affordability check depends on.
type Inputs struct {
	Connected   bool
	Address     string
	ChainID     int64
	MessageCost float64
}

// Check is the result of an affordability check.
type Check struct {
	Sufficient bool
	Balance    *big.Int
	Estimate   domain.CostEstimate
	Chain      domain.Chain
}

// Guard computes affordability and memoizes the last advisory result.
type Guard struct {
	chains    ChainTable
	reader    Reader
	estimator Estimator

	mu          sync.Mutex
	last        *Check
	lastInputs  Inputs
	lastBalance *big.Int
}

// NewGuard creates a Guard.
func NewGuard(chains ChainTable, reader Reader, estimator Estimator) *Guard {
	return &Guard{chains: chains, reader: reader, estimator: estimator}
}

// Refresh returns the advisory check. The cost is re-estimated only when an
// input or the wallet balance changed since the previous check.
func (g *Guard) Refresh(ctx context.Context, in Inputs) (Check, error) {
	c, ok := g.resolve(in)
	if !ok {
		g.remember(in, nil, nil)
		return Check{}, nil
	}

	bal, err := g.reader.GetBalance(ctx, in.Address)
	if err != nil {
		return Check{}, fmt.Errorf("get balance: %w", err)
	}

	g.mu.Lock()
	if g.last != nil && g.lastInputs == in && g.lastBalance != nil && g.lastBalance.Cmp(bal) == 0 {
		cached := *g.last
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	check, err := g.compute(ctx, in, c, bal)
	if err != nil {
		return Check{}, err
	}
	g.remember(in, bal, &check)
	return check, nil
}

// Authoritative always recomputes the check. It must run immediately
// before a payment is submitted.
func (g *Guard) Authoritative(ctx context.Context, in Inputs) (Check, error) {
	c, ok := g.resolve(in)
	if !ok {
		observability.RecordBalanceCheck(false)
		return Check{}, nil
	}

	bal, err := g.reader.GetBalance(ctx, in.Address)
	if err != nil {
		return Check{}, fmt.Errorf("get balance: %w", err)
	}

	check, err := g.compute(ctx, in, c, bal)
	if err != nil {
		return Check{}, err
	}
	g.remember(in, bal, &check)
	observability.RecordBalanceCheck(check.Sufficient)
	return check, nil
}

// Last returns the most recent check, if any.
func (g *Guard) Last() (Check, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return Check{}, false
	}
	return *g.last, true
}

// resolve fails closed: disconnected wallets and chains without a payment
// destination are never sufficient and cost no network calls.
func (g *Guard) resolve(in Inputs) (domain.Chain, bool) {
	if !in.Connected || in.Address == "" {
		return domain.Chain{}, false
	}
	return g.chains.Lookup(in.ChainID)
}

func (g *Guard) compute(ctx context.Context, in Inputs, c domain.Chain, bal *big.Int) (Check, error) {
	est, err := g.estimator.Estimate(ctx, cost.Request{
		FiatCost: in.MessageCost,
		Symbol:   c.Symbol,
		Decimals: c.Decimals,
		To:       c.PaymentAddress,
		Data:     payment.CallData(c.Shape),
	})
	if chain.IsInsufficientFunds(err) {
		return Check{Sufficient: false, Balance: bal, Chain: c}, nil
	}
	if err != nil {
		return Check{}, err
	}
	return Check{
		Sufficient: IsSufficient(bal, est.TotalWei),
		Balance:    bal,
		Estimate:   est,
		Chain:      c,
	}, nil
}

func (g *Guard) remember(in Inputs, bal *big.Int, c *Check) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastInputs = in
	g.lastBalance = bal
	if c == nil {
		g.last = &Check{}
		return
	}
	cp := *c
	g.last = &cp
}
