package domain

// PaymentShape selects how the per-message fee is paid on chain.
type PaymentShape string

const (
	// PaymentShapeTransfer sends plain value to the destination.
	PaymentShapeTransfer PaymentShape = "transfer"
	// PaymentShapeDeposit calls the destination contract's deposit() with value.
	PaymentShapeDeposit PaymentShape = "deposit"
)

// IsValid checks if the shape is a valid value.
func (s PaymentShape) IsValid() bool {
	return s == PaymentShapeTransfer || s == PaymentShapeDeposit
}

// Chain describes a supported chain and its payment destination.
type Chain struct {
	ID             int64
	Name           string
	Symbol         string // native token symbol, e.g. ETH
	Decimals       int32  // native token decimals, 18 on EVM chains
	PaymentAddress string
	Shape          PaymentShape
}
