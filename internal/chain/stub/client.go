// Package stub provides an in-memory chain.Client for tests and local runs.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"paidchat/internal/chain"
)

// Client implements chain.Client against in-memory state.
// Sent transactions are mined immediately with MineStatus unless Pending is set.
type Client struct {
	mu sync.Mutex

	ID       int64
	Gas      uint64
	Price    *big.Int
	balances map[string]*big.Int
	receipts map[string]*chain.Receipt

	// Pending leaves sent transactions unmined.
	Pending bool
	// MineStatus is the receipt status assigned to mined transactions.
	MineStatus uint64

	BalanceErr  error
	EstimateErr error
	GasPriceErr error
	SendErr     error
	ReceiptErr  error

	// BeforeSend runs before a transaction is recorded. Tests use it to block.
	BeforeSend func(ctx context.Context) error

	sent         []chain.CallMsg
	balanceCalls int
	estimateCall int
	block        uint64
}

// NewClient creates a stub client for chainID with 21000 gas at 1 gwei.
func NewClient(chainID int64) *Client {
	return &Client{
		ID:         chainID,
		Gas:        21000,
		Price:      big.NewInt(1_000_000_000),
		MineStatus: chain.ReceiptStatusSuccessful,
		balances:   make(map[string]*big.Int),
		receipts:   make(map[string]*chain.Receipt),
		block:      100,
	}
}

var _ chain.Client = (*Client)(nil)

// SetBalance sets the wei balance of address.
func (c *Client) SetBalance(address string, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[strings.ToLower(address)] = new(big.Int).Set(wei)
}

// SetReceipt stores a receipt for hash, replacing any existing one.
func (c *Client) SetReceipt(r *chain.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *r
	c.receipts[r.TxHash] = &cp
}

// Sent returns a copy of the transactions sent so far.
func (c *Client) Sent() []chain.CallMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chain.CallMsg, len(c.sent))
	copy(out, c.sent)
	return out
}

// BalanceCalls returns the number of GetBalance calls.
func (c *Client) BalanceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceCalls
}

// EstimateCalls returns the number of EstimateGas calls.
func (c *Client) EstimateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimateCall
}

// ChainID returns the configured chain id.
func (c *Client) ChainID(_ context.Context) (int64, error) {
	return c.ID, nil
}

// GetBalance returns the stored balance, zero if unset.
func (c *Client) GetBalance(_ context.Context, address string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceCalls++
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	if b, ok := c.balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// EstimateGas returns the configured gas units. Like a node, it rejects
// estimates whose sender cannot cover the value.
func (c *Client) EstimateGas(_ context.Context, msg chain.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimateCall++
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	if msg.From != "" && msg.Value != nil {
		bal := c.balances[strings.ToLower(msg.From)]
		if bal == nil || bal.Cmp(msg.Value) < 0 {
			return 0, &chain.RPCError{Code: -32000, Message: "insufficient funds for transfer"}
		}
	}
	return c.Gas, nil
}

// GasPrice returns the configured gas price.
func (c *Client) GasPrice(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GasPriceErr != nil {
		return nil, c.GasPriceErr
	}
	return new(big.Int).Set(c.Price), nil
}

// SendTransaction records msg and, unless Pending, mines it at once.
func (c *Client) SendTransaction(ctx context.Context, msg chain.CallMsg) (string, error) {
	c.mu.Lock()
	hook := c.BeforeSend
	c.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}

	c.sent = append(c.sent, msg)
	hash := fmt.Sprintf("0x%064x", len(c.sent))

	if !c.Pending {
		c.block++
		c.receipts[hash] = &chain.Receipt{
			TxHash:      hash,
			Status:      c.MineStatus,
			BlockNumber: c.block,
			GasUsed:     c.Gas,
		}
	}
	return hash, nil
}

// GetTransactionReceipt returns the stored receipt or nil while pending.
func (c *Client) GetTransactionReceipt(_ context.Context, hash string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	r, ok := c.receipts[hash]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}
