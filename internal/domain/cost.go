package domain

import "math/big"

// CostEstimate is the transient price of one message. Recomputed on every
// balance check, never cached.
type CostEstimate struct {
	FiatCost    float64  // USD
	TokenPrice  float64  // USD per native token
	TokenAmount float64  // FiatCost / TokenPrice
	AmountWei   *big.Int // TokenAmount in the smallest unit
	GasUnits    uint64
	GasPrice    *big.Int // wei per gas unit
	TotalWei    *big.Int // AmountWei + GasUnits*GasPrice
}
