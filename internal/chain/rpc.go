// Package chain provides EVM JSON-RPC and subscription clients used to price,
// submit and confirm per-message payments.
package chain

import (
	"context"
	"math/big"
)

// Client defines the EVM RPC surface the payment flow depends on.
type Client interface {
	// ChainID returns the chain id reported by the node.
	ChainID(ctx context.Context) (int64, error)

	// GetBalance returns the latest balance of address in wei.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// EstimateGas estimates gas units needed to execute msg.
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)

	// GasPrice returns the current gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction asks the node-side wallet to sign and broadcast msg.
	// Returns the transaction hash.
	SendTransaction(ctx context.Context, msg CallMsg) (string, error)

	// GetTransactionReceipt returns the receipt for hash, or nil if the
	// transaction is not mined yet.
	GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error)
}

// CallMsg is a value transfer or contract call.
type CallMsg struct {
	From  string
	To    string
	Value *big.Int // wei, nil means zero
	Data  []byte
	Gas   uint64 // optional gas limit, 0 lets the node decide
}

// Receipt status values.
const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

// Receipt is a mined transaction receipt.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}
