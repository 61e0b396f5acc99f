// Package cost converts fiat message prices into native token amounts and
// totals them with gas in integer base units.
package cost

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"paidchat/internal/chain"
	"paidchat/internal/domain"
)

var (
	// ErrInvalidPriceData is returned when a token price is zero, negative or not finite.
	ErrInvalidPriceData = errors.New("invalid price data")
	// ErrInvalidCost is returned when a fiat cost is negative or not finite.
	ErrInvalidCost = errors.New("invalid cost")
)

// ComputeTokenAmount returns fiatCost / usdPrice.
func ComputeTokenAmount(fiatCost, usdPrice float64) (float64, error) {
	if usdPrice <= 0 || math.IsNaN(usdPrice) || math.IsInf(usdPrice, 0) {
		return 0, fmt.Errorf("%w: price %v", ErrInvalidPriceData, usdPrice)
	}
	if fiatCost < 0 || math.IsNaN(fiatCost) || math.IsInf(fiatCost, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCost, fiatCost)
	}
	return fiatCost / usdPrice, nil
}

// ToBaseUnits converts a token amount into integer base units, truncating
// anything below one unit. This is the last floating-point stage.
func ToBaseUnits(amount float64, decimals int32) (*big.Int, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount %v", ErrInvalidCost, amount)
	}
	return decimal.NewFromFloat(amount).Shift(decimals).Truncate(0).BigInt(), nil
}

// EstimateTotalCost returns amount + gasUnits*gasPrice.
func EstimateTotalCost(amount *big.Int, gasUnits uint64, gasPrice *big.Int) *big.Int {
	total := new(big.Int)
	if gasPrice != nil {
		total.Mul(new(big.Int).SetUint64(gasUnits), gasPrice)
	}
	if amount != nil {
		total.Add(total, amount)
	}
	return total
}

// FormatUnits renders base units as a decimal token amount, e.g. 1.5 for
// 1500000000000000000 with 18 decimals.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// PriceSource returns the USD price of a token symbol.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// GasSource estimates gas for a call and reads the gas price.
type GasSource interface {
	EstimateGas(ctx context.Context, msg chain.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Request describes the payment to price.
type Request struct {
	FiatCost float64
	Symbol   string
	Decimals int32
	To       string
	Data     []byte
}

// Estimator builds cost estimates from a price source and the chain.
type Estimator struct {
	prices PriceSource
	gas    GasSource
}

// NewEstimator creates an Estimator.
func NewEstimator(prices PriceSource, gas GasSource) *Estimator {
	return &Estimator{prices: prices, gas: gas}
}

// Estimate prices req. Estimates are never cached.
func (e *Estimator) Estimate(ctx context.Context, req Request) (domain.CostEstimate, error) {
	price, err := e.prices.GetPrice(ctx, req.Symbol)
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("get price: %w", err)
	}

	amount, err := ComputeTokenAmount(req.FiatCost, price)
	if err != nil {
		return domain.CostEstimate{}, err
	}

	amountWei, err := ToBaseUnits(amount, req.Decimals)
	if err != nil {
		return domain.CostEstimate{}, err
	}

	// No sender: nodes reject estimates whose sender cannot cover value.
	gasUnits, err := e.gas.EstimateGas(ctx, chain.CallMsg{
		To:    req.To,
		Value: amountWei,
		Data:  req.Data,
	})
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("estimate gas: %w", err)
	}

	gasPrice, err := e.gas.GasPrice(ctx)
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("gas price: %w", err)
	}

	return domain.CostEstimate{
		FiatCost:    req.FiatCost,
		TokenPrice:  price,
		TokenAmount: amount,
		AmountWei:   amountWei,
		GasUnits:    gasUnits,
		GasPrice:    gasPrice,
		TotalWei:    EstimateTotalCost(amountWei, gasUnits, gasPrice),
	}, nil
}
