// Package payment submits per-message payments and waits for their receipts.
package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"time"

	"paidchat/internal/chain"
	"paidchat/internal/domain"
	"paidchat/internal/observability"
)

// Default confirmation settings.
const (
	DefaultConfirmTimeout = 2 * time.Minute
	DefaultPollInterval   = 2 * time.Second
)

var (
	// ErrSubmissionFailed is returned when the wallet or node rejects the transaction.
	ErrSubmissionFailed = errors.New("payment submission failed")
	// ErrConfirmationTimeout is returned when no receipt arrives in time.
	ErrConfirmationTimeout = errors.New("payment confirmation timeout")
	// ErrReverted is returned when the transaction is mined with failed status.
	ErrReverted = errors.New("payment reverted")
)

var depositSelector = chain.FunctionSelector("deposit()")

// CallData returns the call data for shape: deposit() selector or none.
func CallData(shape domain.PaymentShape) []byte {
	if shape == domain.PaymentShapeDeposit {
		out := make([]byte, len(depositSelector))
		copy(out, depositSelector)
		return out
	}
	return nil
}

// Payment is one per-message payment.
type Payment struct {
	From   string
	To     string
	Amount *big.Int // wei
	Shape  domain.PaymentShape
}

// Options configures a Submitter.
type Options struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// Heads, if set, triggers a receipt check on every new block.
	Heads  chain.HeadSource
	Logger *log.Logger
}

// Submitter drives a payment through submission and confirmation.
type Submitter struct {
	client         chain.Client
	heads          chain.HeadSource
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *log.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client chain.Client, opts Options) *Submitter {
	s := &Submitter{
		client:         client,
		heads:          opts.Heads,
		confirmTimeout: opts.ConfirmTimeout,
		pollInterval:   opts.PollInterval,
		logger:         opts.Logger,
	}
	if s.confirmTimeout <= 0 {
		s.confirmTimeout = DefaultConfirmTimeout
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// Submit broadcasts p and returns the transaction hash.
func (s *Submitter) Submit(ctx context.Context, p Payment) (string, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: non-positive amount", ErrSubmissionFailed)
	}
	if !chain.IsHexAddress(p.To) {
		return "", fmt.Errorf("%w: invalid destination %q", ErrSubmissionFailed, p.To)
	}

	hash, err := s.client.SendTransaction(ctx, chain.CallMsg{
		From:  p.From,
		To:    p.To,
		Value: p.Amount,
		Data:  CallData(p.Shape),
	})
	if err != nil {
		observability.RecordPayment("rejected", 0)
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	s.logger.Printf("submitted %s wei to %s (%s): %s", p.Amount, p.To, p.Shape, hash)
	return hash, nil
}

// AwaitConfirmation waits for the receipt of hash. Transient receipt lookup
// errors are logged and retried until the confirmation timeout.
func (s *Submitter) AwaitConfirmation(ctx context.Context, hash string) (domain.TransactionOutcome, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	var heads <-chan chain.Head
	if s.heads != nil {
		ch, err := s.heads.SubscribeNewHeads(ctx)
		if err != nil {
			s.logger.Printf("head subscription unavailable, polling only: %v", err)
		} else {
			heads = ch
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.client.GetTransactionReceipt(ctx, hash)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				s.logger.Printf("receipt lookup for %s failed: %v", hash, err)
			}
		case receipt != nil:
			return s.outcome(receipt, start)
		}

		select {
		case <-ctx.Done():
			observability.RecordPayment("timeout", 0)
			return domain.TransactionOutcome{TxHash: hash, Status: domain.TxStatusFailure},
				fmt.Errorf("%w: %s", ErrConfirmationTimeout, hash)
		case <-ticker.C:
		case _, ok := <-heads:
			if !ok {
				heads = nil
			}
		}
	}
}

func (s *Submitter) outcome(r *chain.Receipt, start time.Time) (domain.TransactionOutcome, error) {
	out := domain.TransactionOutcome{
		TxHash:      r.TxHash,
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
	}
	if r.Status != chain.ReceiptStatusSuccessful {
		out.Status = domain.TxStatusFailure
		observability.RecordPayment("reverted", 0)
		return out, fmt.Errorf("%w: %s in block %d", ErrReverted, r.TxHash, r.BlockNumber)
	}
	out.Status = domain.TxStatusSuccess
	observability.RecordPayment("confirmed", time.Since(start).Seconds())
	return out, nil
}

// Pay submits p and waits for confirmation.
func (s *Submitter) Pay(ctx context.Context, p Payment) (domain.TransactionOutcome, error) {
	hash, err := s.Submit(ctx, p)
	if err != nil {
		return domain.TransactionOutcome{Status: domain.TxStatusFailure}, err
	}
	return s.AwaitConfirmation(ctx, hash)
}
