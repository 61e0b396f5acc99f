// Package orchestrator runs the payment-gated message submission flow:
// validate, price, check balance, pay, confirm, deliver, reconcile.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paidchat/internal/balance"
	"paidchat/internal/chatapi"
	"paidchat/internal/conversation"
	"paidchat/internal/domain"
	"paidchat/internal/observability"
	"paidchat/internal/payment"
)

// Guard checks affordability.
type Guard interface {
	Refresh(ctx context.Context, in balance.Inputs) (balance.Check, error)
	Authoritative(ctx context.Context, in balance.Inputs) (balance.Check, error)
}

// Payer submits and confirms payments.
type Payer interface {
	Submit(ctx context.Context, p payment.Payment) (string, error)
	AwaitConfirmation(ctx context.Context, hash string) (domain.TransactionOutcome, error)
}

// AgentSource resolves agents by id.
type AgentSource interface {
	Get(id string) (domain.Agent, error)
}

// Options for creating a Session.
type Options struct {
	Wallet  Wallet
	Chains  balance.ChainTable
	Guard   Guard
	Payer   Payer
	Service chatapi.Service
	Agents  AgentSource
	Store   *conversation.Store

	// OnTransition is called on every state change.
	OnTransition func(from, to State)
	// OnWin is called once per reply that contains a restricted phrase.
	OnWin func(agent domain.Agent, reply domain.Message)

	Logger *log.Logger
}

// Session is one user's chat session. At most one send is in flight.
type Session struct {
	wallet  Wallet
	chains  balance.ChainTable
	guard   Guard
	payer   Payer
	service chatapi.Service
	agents  AgentSource
	store   *conversation.Store

	onTransition func(from, to State)
	onWin        func(agent domain.Agent, reply domain.Message)
	logger       *log.Logger

	busy   atomic.Bool
	typing atomic.Bool

	mu         sync.Mutex
	state      State
	input      string
	costs      map[string]float64
	balance    *big.Int
	affordable bool
}

// New creates a Session.
func New(opts Options) *Session {
	s := &Session{
		wallet:       opts.Wallet,
		chains:       opts.Chains,
		guard:        opts.Guard,
		payer:        opts.Payer,
		service:      opts.Service,
		agents:       opts.Agents,
		store:        opts.Store,
		onTransition: opts.OnTransition,
		onWin:        opts.OnWin,
		logger:       opts.Logger,
		state:        StateIdle,
		costs:        make(map[string]float64),
	}
	if s.store == nil {
		s.store = conversation.NewStore()
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// SetInput replaces the pending input text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the pending input text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a send is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

// Typing reports whether the agent reply is pending.
func (s *Session) Typing() bool { return s.typing.Load() }

// Messages returns the conversation with agentID.
func (s *Session) Messages(agentID string) []domain.Message {
	return s.store.Messages(agentID)
}

// MessageCost returns the known per-message cost for agentID.
func (s *Session) MessageCost(agentID string) float64 {
	s.mu.Lock()
	c, ok := s.costs[agentID]
	s.mu.Unlock()
	if ok {
		return c
	}
	if s.agents != nil {
		if a, err := s.agents.Get(agentID); err == nil && a.MessageCost > 0 {
			return a.MessageCost
		}
	}
	return domain.DefaultAgent.MessageCost
}

func (s *Session) setCost(agentID string, c float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs[agentID] = c
}

// Balance returns the last displayed balance and advisory affordability.
func (s *Session) Balance() (*big.Int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance == nil {
		return nil, s.affordable
	}
	return new(big.Int).Set(s.balance), s.affordable
}

func (s *Session) inputs(agentID string) balance.Inputs {
	in := balance.Inputs{MessageCost: s.MessageCost(agentID)}
	if s.wallet != nil {
		in.Connected = s.wallet.Connected()
		in.Address = s.wallet.Address()
		in.ChainID = s.wallet.ChainID()
	}
	return in
}

// RefreshBalance updates the balance display and advisory affordability gate.
func (s *Session) RefreshBalance(ctx context.Context, agentID string) (balance.Check, error) {
	check, err := s.guard.Refresh(ctx, s.inputs(agentID))
	if err != nil {
		return balance.Check{}, err
	}
	s.mu.Lock()
	s.balance = check.Balance
	s.affordable = check.Sufficient
	s.mu.Unlock()
	return check, nil
}

// Load fetches history and cost for agentID concurrently. History is merged
// into the conversation without dropping optimistic messages; a failed
// history load leaves the conversation untouched.
func (s *Session) Load(ctx context.Context, agentID string) error {
	var (
		history []chatapi.HistoryItem
		cost    float64
		g       errgroup.Group
	)
	var historyErr, costErr error

	g.Go(func() error {
		history, historyErr = s.service.History(ctx, agentID)
		return historyErr
	})
	g.Go(func() error {
		cost, costErr = s.service.Cost(ctx, agentID)
		return costErr
	})
	err := g.Wait()

	if historyErr == nil {
		msgs := make([]domain.Message, 0, len(history))
		for _, h := range history {
			msgs = append(msgs, chatapi.ToDomainMessage(h, agentID))
		}
		s.store.Load(agentID, msgs)
	}
	if costErr == nil {
		s.setCost(agentID, cost)
	}
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", agentID, err)
	}
	return nil
}

// Send submits the pending input to agentID. A send already in flight makes
// this a no-op returning ErrBusy. Every other outcome is reported through
// the returned Settlement and error, and always leaves the session idle.
func (s *Session) Send(ctx context.Context, agentID string) (Settlement, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Settlement{}, ErrBusy
	}
	defer func() {
		s.typing.Store(false)
		if s.State().IsTerminal() {
			s.transition(StateIdle)
		}
		s.busy.Store(false)
	}()

	s.transition(StateValidating)
	text := strings.TrimSpace(s.Input())
	agent, err := s.validate(agentID, text)
	if err != nil {
		s.transition(StateIdle)
		observability.RecordMessage("invalid")
		return Settlement{State: StateIdle, Err: err}, err
	}

	s.transition(StatePricingCost)
	in := s.inputs(agentID)
	check, err := s.guard.Authoritative(ctx, in)
	if err != nil {
		return s.settleFailure(Settlement{}, "pricing_error", fmt.Errorf("check balance: %w", err))
	}
	s.mu.Lock()
	s.balance = check.Balance
	s.affordable = check.Sufficient
	s.mu.Unlock()
	if !check.Sufficient {
		return s.settleFailure(Settlement{}, "insufficient_funds", ErrInsufficientFunds)
	}

	tempID := domain.TempIDPrefix + uuid.NewString()
	s.store.Apply(agentID, conversation.MessageOptimisticallyAdded{Message: domain.Message{
		ID:      tempID,
		Role:    domain.RoleUser,
		Content: text,
		AgentID: agentID,
		Name:    in.Address,
	}})
	s.SetInput("")

	s.transition(StateAwaitingPayment)
	hash, err := s.payer.Submit(ctx, payment.Payment{
		From:   in.Address,
		To:     check.Chain.PaymentAddress,
		Amount: check.Estimate.AmountWei,
		Shape:  check.Chain.Shape,
	})
	if err != nil {
		s.rollback(agentID, tempID)
		return s.settleFailure(Settlement{}, "transaction_failed", fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	// Once submitted, the flow runs to a terminal outcome regardless of
	// caller cancellation.
	flowCtx := context.WithoutCancel(ctx)

	s.transition(StateConfirmingPayment)
	outcome, err := s.payer.AwaitConfirmation(flowCtx, hash)
	if err == nil && !outcome.Succeeded() {
		err = fmt.Errorf("%w: status %s", payment.ErrReverted, outcome.Status)
	}
	if err != nil {
		s.rollback(agentID, tempID)
		return s.settleFailure(Settlement{TxHash: hash, Outcome: outcome}, "transaction_failed",
			fmt.Errorf("%w: %w", ErrTransactionFailed, err))
	}

	s.transition(StateDeliveringMessage)
	s.typing.Store(true)
	resp, err := s.service.SendMessage(flowCtx, chatapi.SendMessageRequest{
		UserID:   in.Address,
		Username: in.Address,
		Message:  text,
		AgentID:  agentID,
	})
	if err == nil && strings.TrimSpace(resp.ReplyText()) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		s.logger.Printf("payment %s confirmed but delivery failed: %v", hash, err)
		return s.settleFailure(Settlement{TxHash: hash, Outcome: outcome, MessageID: tempID}, "delivery_failed",
			fmt.Errorf("%w: %w", ErrDeliveryFailedAfterPayment, err))
	}

	messageID := resp.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	s.store.Apply(agentID, conversation.MessageConfirmed{TempID: tempID, ID: messageID})

	replyID := resp.ReplyMessageID()
	if replyID == "" {
		replyID = uuid.NewString()
	}
	reply := domain.Message{
		ID:      replyID,
		Role:    domain.RoleAssistant,
		Content: resp.ReplyText(),
		AgentID: agentID,
		Name:    agent.Name,
	}
	s.store.Apply(agentID, conversation.ReplyAppended{Message: reply})

	if c, err := s.service.Cost(flowCtx, agentID); err != nil {
		s.logger.Printf("fresh cost for %s unavailable: %v", agentID, err)
	} else {
		s.setCost(agentID, c)
	}
	if _, err := s.RefreshBalance(flowCtx, agentID); err != nil {
		s.logger.Printf("balance refresh failed: %v", err)
	}

	won := agent.MatchesRestrictedPhrase(reply.Content)
	if won {
		s.logger.Printf("restricted phrase emitted by %s", agent.Name)
		if s.onWin != nil {
			s.onWin(agent, reply)
		}
	}

	s.transition(StateSettledSuccess)
	observability.RecordMessage("delivered")
	return Settlement{
		State:     StateSettledSuccess,
		TxHash:    hash,
		Outcome:   outcome,
		MessageID: messageID,
		Reply:     &reply,
		Won:       won,
		Cost:      s.MessageCost(agentID),
	}, nil
}

// validate runs the pre-flight guards. It makes no network calls.
func (s *Session) validate(agentID, text string) (domain.Agent, error) {
	if text == "" {
		return domain.Agent{}, ErrEmptyInput
	}
	if s.wallet == nil || !s.wallet.Connected() || s.wallet.Address() == "" {
		return domain.Agent{}, ErrNotConnected
	}
	if _, ok := s.chains.Lookup(s.wallet.ChainID()); !ok {
		return domain.Agent{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, s.wallet.ChainID())
	}
	agent, err := s.agents.Get(agentID)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return agent, nil
}

func (s *Session) rollback(agentID, tempID string) {
	s.store.Apply(agentID, conversation.MessageRolledBack{TempID: tempID})
}

func (s *Session) settleFailure(st Settlement, outcome string, err error) (Settlement, error) {
	s.transition(StateSettledFailure)
	observability.RecordMessage(outcome)
	st.State = StateSettledFailure
	st.Err = err
	return st, err
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	observability.RecordTransition(string(to))
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}
