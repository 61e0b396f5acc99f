package orchestrator

import (
	"errors"
	"fmt"

	"paidchat/internal/domain"
)

// State is a step of one send attempt.
type State string

const (
	StateIdle              State = "idle"
	StateValidating        State = "validating"
	StatePricingCost       State = "pricing_cost"
	StateAwaitingPayment   State = "awaiting_payment"
	StateConfirmingPayment State = "confirming_payment"
	StateDeliveringMessage State = "delivering_message"
	StateSettledSuccess    State = "settled_success"
	StateSettledFailure    State = "settled_failure"
)

// IsTerminal reports whether s ends a send attempt.
func (s State) IsTerminal() bool {
	return s == StateSettledSuccess || s == StateSettledFailure
}

var (
	// ErrValidation wraps every pre-flight guard failure. No network calls
	// are made when it is returned.
	ErrValidation = errors.New("validation failed")

	ErrEmptyInput       = fmt.Errorf("%w: empty input", ErrValidation)
	ErrNotConnected     = fmt.Errorf("%w: wallet not connected", ErrValidation)
	ErrUnsupportedChain = fmt.Errorf("%w: unsupported chain", ErrValidation)
	ErrUnknownAgent     = fmt.Errorf("%w: unknown agent", ErrValidation)

	// ErrBusy is returned when a send is already in flight. Nothing changes.
	ErrBusy = errors.New("send already in progress")

	// ErrInsufficientFunds means the pre-submission check failed. No
	// transaction was attempted.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionFailed means no funds were spent and retrying is safe.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDeliveryFailedAfterPayment means the payment went through but the
	// message may not have been registered. Never retried automatically.
	ErrDeliveryFailedAfterPayment = errors.New("delivery failed after payment")

	// ErrEmptyReply is the cause when the service accepted the request but
	// returned no reply.
	ErrEmptyReply = errors.New("service returned no reply")
)

// Settlement is the terminal result of a send attempt.
type Settlement struct {
	State   State
	Err     error
	TxHash  string
	Outcome domain.TransactionOutcome
	// MessageID is the confirmed id of the user message, or its temporary
	// id when delivery failed after payment.
	MessageID string
	Reply     *domain.Message
	Won       bool
	Cost      float64 // message cost after the send
}

// Succeeded reports whether the send settled successfully.
func (s Settlement) Succeeded() bool {
	return s.State == StateSettledSuccess
}
