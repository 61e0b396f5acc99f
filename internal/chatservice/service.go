// Package chatservice is the Conversation Service backend: it persists both
// sides of every exchange, escalates the per-agent cost multiplier and proxies
// prompts to the configured responder under a hard timeout.
package chatservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paidchat/internal/domain"
	"paidchat/internal/llm"
	"paidchat/internal/observability"
	"paidchat/internal/stats"
	"paidchat/internal/storage"
)

// Canned replies.
const (
	TimeoutReply  = "Sorry, I am not feeling well! I wanna sleep..zzz"
	FallbackReply = "I don't like you! Baka!!!"
)

const (
	// DefaultReplyTimeout bounds every responder call.
	DefaultReplyTimeout = 5 * time.Second
	// InitialMultiplier is the multiplier of an agent that has never been paid.
	InitialMultiplier = 1.0
)

var escalation = decimal.RequireFromString("1.2")

// Sentinel errors.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrMissingUser  = errors.New("user id is required")
	ErrUnknownAgent = errors.New("unknown agent")
	ErrInvalidAgent = errors.New("invalid agent")
)

// Options for creating a Service.
type Options struct {
	Users     storage.UserStore
	Agents    storage.AgentStore
	Messages  storage.MessageStore
	Costs     storage.CostStore
	Exchanges storage.ExchangeStore // optional analytics sink
	Responder llm.Responder

	ReplyTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

// Service implements the Conversation Service operations.
type Service struct {
	users     storage.UserStore
	agents    storage.AgentStore
	messages  storage.MessageStore
	costs     storage.CostStore
	exchanges storage.ExchangeStore
	stats     *stats.Aggregator
	responder llm.Responder

	replyTimeout time.Duration
	logger       *log.Logger
	now          func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a Service. All stores and the responder are required except
// Exchanges.
func New(opts Options) (*Service, error) {
	if opts.Users == nil || opts.Agents == nil || opts.Messages == nil || opts.Costs == nil {
		return nil, fmt.Errorf("chatservice: stores are required")
	}
	if opts.Responder == nil {
		return nil, fmt.Errorf("chatservice: responder is required")
	}
	s := &Service{
		users:        opts.Users,
		agents:       opts.Agents,
		messages:     opts.Messages,
		costs:        opts.Costs,
		exchanges:    opts.Exchanges,
		responder:    opts.Responder,
		replyTimeout: opts.ReplyTimeout,
		logger:       opts.Logger,
		now:          opts.Now,
		locks:        make(map[string]*sync.Mutex),
	}
	if s.exchanges != nil {
		s.stats = stats.NewAggregator(s.exchanges)
	}
	if s.replyTimeout <= 0 {
		s.replyTimeout = DefaultReplyTimeout
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// SeedDefaultAgent stores the default agent unless it already exists.
func (s *Service) SeedDefaultAgent(ctx context.Context) error {
	a := domain.DefaultAgent
	a.RestrictedPhrases = append([]string(nil), a.RestrictedPhrases...)
	a.CreatedAt = s.now().UnixMilli()
	a.UpdatedAt = a.CreatedAt
	if err := s.agents.Insert(ctx, &a); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("seed default agent: %w", err)
	}
	return nil
}

// Incoming is one paid user message.
type Incoming struct {
	UserID   string
	Username string
	AgentID  string
	Message  string
}

// Result is the outcome of ProcessMessage.
type Result struct {
	Reply      string
	MessageID  string
	ReplyID    string
	Multiplier float64 // multiplier this message was charged at
	NextCost   float64 // fiat cost of the next message
	TimedOut   bool
	Won        bool
}

// ProcessMessage persists the user message, asks the responder for the agent's
// reply, persists it and escalates the agent's cost multiplier.
func (s *Service) ProcessMessage(ctx context.Context, in Incoming) (*Result, error) {
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if in.UserID == "" {
		return nil, ErrMissingUser
	}
	agent, err := s.agent(ctx, in.AgentID)
	if err != nil {
		return nil, err
	}

	username := in.Username
	if username == "" {
		username = in.UserID
	}
	now := s.now().UnixMilli()
	if err := s.users.Upsert(ctx, &domain.User{ID: in.UserID, Username: username, CreatedAt: now}); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if err := s.users.Upsert(ctx, &domain.User{ID: domain.BotUserID, Username: domain.BotUsername, CreatedAt: now}); err != nil {
		return nil, fmt.Errorf("upsert bot user: %w", err)
	}

	userMsg := &domain.StoredMessage{
		ID:        uuid.NewString(),
		AgentID:   agent.ID,
		UserID:    in.UserID,
		Content:   in.Message,
		CreatedAt: now,
	}
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	started := s.now()
	reply, timedOut := s.reply(ctx, agent, in.Message)
	latency := s.now().Sub(started)
	observability.RecordReply(latency.Seconds(), timedOut)

	replyMsg := &domain.StoredMessage{
		ID:        uuid.NewString(),
		AgentID:   agent.ID,
		UserID:    domain.BotUserID,
		Content:   reply,
		IsBot:     true,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.messages.Insert(ctx, replyMsg); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}

	charged, next, err := s.escalate(ctx, agent.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Reply:      reply,
		MessageID:  userMsg.ID,
		ReplyID:    replyMsg.ID,
		Multiplier: charged,
		NextCost:   fiatCost(agent, next),
		TimedOut:   timedOut,
		Won:        agent.MatchesRestrictedPhrase(reply),
	}
	if res.Won {
		s.logger.Printf("agent %s revealed a restricted phrase to %s", agent.ID, in.UserID)
	}

	s.recordExchange(ctx, &domain.Exchange{
		ExchangeID:      userMsg.ID,
		AgentID:         agent.ID,
		UserID:          in.UserID,
		Multiplier:      charged,
		NextMultiplier:  next,
		ResponseLatency: latency.Milliseconds(),
		TimedOut:        timedOut,
		Won:             res.Won,
		PromptChars:     len([]rune(in.Message)),
		ReplyChars:      len([]rune(reply)),
		CreatedAt:       now,
	})
	return res, nil
}

// reply asks the responder under the hard timeout. The responder runs in its
// own goroutine so a call that ignores ctx still cannot hold the request.
func (s *Service) reply(ctx context.Context, agent *domain.Agent, message string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := s.responder.Respond(ctx, llm.Request{
			SystemPrompt: llm.GuardPrompt(agent),
			Message:      message,
		})
		done <- answer{text, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			if errors.Is(a.err, context.DeadlineExceeded) {
				return TimeoutReply, true
			}
			s.logger.Printf("responder failed for agent %s: %v", agent.ID, a.err)
			return FallbackReply, false
		}
		if strings.TrimSpace(a.text) == "" {
			return FallbackReply, false
		}
		return a.text, false
	case <-ctx.Done():
		return TimeoutReply, true
	}
}

// escalate multiplies the agent's multiplier by 1.2, rounded to one decimal.
// Returns the multiplier before and after.
func (s *Service) escalate(ctx context.Context, agentID string) (float64, float64, error) {
	mu := s.lock(agentID)
	mu.Lock()
	defer mu.Unlock()

	m, err := s.costs.GetOrCreate(ctx, agentID, InitialMultiplier)
	if err != nil {
		return 0, 0, fmt.Errorf("read cost multiplier: %w", err)
	}
	next := Escalate(m)
	if err := s.costs.Set(ctx, agentID, next); err != nil {
		return 0, 0, fmt.Errorf("escalate cost multiplier: %w", err)
	}
	observability.UpdateChatCost(agentID, next)
	return m, next, nil
}

// Escalate returns round(m * 1.2, 1 decimal).
func Escalate(m float64) float64 {
	next, _ := decimal.NewFromFloat(m).Mul(escalation).Round(1).Float64()
	return next
}

func (s *Service) lock(agentID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[agentID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[agentID] = mu
	}
	return mu
}

func (s *Service) recordExchange(ctx context.Context, e *domain.Exchange) {
	observability.RecordExchange()
	if s.exchanges == nil {
		return
	}
	if err := s.exchanges.Insert(ctx, e); err != nil {
		s.logger.Printf("record exchange %s: %v", e.ExchangeID, err)
	}
}

// AgentStats summarizes the recorded exchanges of agentID. Without an
// exchange store, or before the first exchange, the summary is empty.
func (s *Service) AgentStats(ctx context.Context, agentID string) (*domain.AgentStats, error) {
	agent, err := s.agent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if s.stats == nil {
		return &domain.AgentStats{AgentID: agent.ID}, nil
	}
	st, err := s.stats.ComputeAgent(ctx, agent.ID)
	if errors.Is(err, stats.ErrNoExchanges) {
		return &domain.AgentStats{AgentID: agent.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// History returns the conversation with agentID in insertion order.
func (s *Service) History(ctx context.Context, agentID string) ([]*domain.StoredMessage, error) {
	if agentID == "" {
		agentID = domain.DefaultAgentID
	}
	msgs, err := s.messages.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// CurrentCost returns the fiat cost of the next message to agentID.
func (s *Service) CurrentCost(ctx context.Context, agentID string) (float64, error) {
	agent, err := s.agent(ctx, agentID)
	if err != nil {
		return 0, err
	}
	m, err := s.costs.GetOrCreate(ctx, agent.ID, InitialMultiplier)
	if err != nil {
		return 0, fmt.Errorf("read cost multiplier: %w", err)
	}
	return fiatCost(agent, m), nil
}

// Agents lists the configured agents with their current message cost. The
// default agent is returned when none are stored.
func (s *Service) Agents(ctx context.Context) ([]*domain.Agent, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		a := domain.DefaultAgent
		agents = []*domain.Agent{&a}
	}
	for _, a := range agents {
		m, err := s.costs.GetOrCreate(ctx, a.ID, InitialMultiplier)
		if err != nil {
			return nil, fmt.Errorf("read cost multiplier: %w", err)
		}
		a.MessageCost = fiatCost(a, m)
	}
	return agents, nil
}

// NewAgent is a request to create an agent.
type NewAgent struct {
	OwnerID           string
	Name              string
	Avatar            string
	Description       string
	SystemPrompt      string
	RestrictedPhrases []string
	MessageCost       float64 // base fiat cost, defaults to 1
	InitialPrizePool  float64
}

// CreateAgent validates and stores a new agent.
func (s *Service) CreateAgent(ctx context.Context, req NewAgent) (*domain.Agent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAgent)
	}
	var phrases []string
	for _, p := range req.RestrictedPhrases {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%w: at least one restricted phrase is required", ErrInvalidAgent)
	}
	if req.InitialPrizePool < 0 || req.MessageCost < 0 {
		return nil, fmt.Errorf("%w: amounts must not be negative", ErrInvalidAgent)
	}
	cost := req.MessageCost
	if cost == 0 {
		cost = domain.DefaultAgent.MessageCost
	}

	now := s.now().UnixMilli()
	a := &domain.Agent{
		ID:                uuid.NewString(),
		OwnerID:           req.OwnerID,
		Name:              name,
		Avatar:            req.Avatar,
		Description:       req.Description,
		SystemPrompt:      req.SystemPrompt,
		RestrictedPhrases: phrases,
		MessageCost:       cost,
		InitialPrizePool:  req.InitialPrizePool,
		PrizePool:         req.InitialPrizePool,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.agents.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.logger.Printf("created agent %s (%s)", a.ID, a.Name)
	return a, nil
}

// agent resolves agentID; empty means the default agent, which is always
// available even when not stored.
func (s *Service) agent(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		agentID = domain.DefaultAgentID
	}
	a, err := s.agents.GetByID(ctx, agentID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if agentID == domain.DefaultAgentID {
		d := domain.DefaultAgent
		return &d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
}

// fiatCost is the agent's base cost scaled by multiplier, in cents precision.
func fiatCost(agent *domain.Agent, multiplier float64) float64 {
	base := agent.MessageCost
	if base <= 0 {
		base = domain.DefaultAgent.MessageCost
	}
	cost, _ := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(multiplier)).Round(2).Float64()
	return cost
}
