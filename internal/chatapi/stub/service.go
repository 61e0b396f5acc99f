// Package stub provides an in-memory chatapi.Service for tests.
package stub

import (
	"context"
	"fmt"
	"sync"

	"paidchat/internal/chatapi"
)

// Service implements chatapi.Service with scripted replies.
type Service struct {
	mu sync.Mutex

	// Reply is returned for every SendMessage call.
	Reply string
	// NextCost is reported by Cost after each successful SendMessage.
	NextCost float64

	SendErr    error
	HistoryErr error
	CostErr    error
	AgentsErr  error

	// LostResponseErr is returned after the message was recorded, as when
	// the connection drops before the response arrives.
	LostResponseErr error

	// BeforeSend runs at the start of SendMessage. Tests use it to block.
	BeforeSend func(ctx context.Context) error

	history map[string][]chatapi.HistoryItem
	costs   map[string]float64
	agents  []chatapi.Agent
	sent    []chatapi.SendMessageRequest
	seq     int
}

// NewService creates a stub service replying with reply.
func NewService(reply string) *Service {
	return &Service{
		Reply:   reply,
		history: make(map[string][]chatapi.HistoryItem),
		costs:   make(map[string]float64),
	}
}

var _ chatapi.Service = (*Service)(nil)

// SetHistory replaces the history of agentID.
func (s *Service) SetHistory(agentID string, items []chatapi.HistoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[agentID] = append([]chatapi.HistoryItem(nil), items...)
}

// SetCost sets the cost of agentID.
func (s *Service) SetCost(agentID string, cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs[agentID] = cost
}

// SetAgents replaces the agent list.
func (s *Service) SetAgents(agents []chatapi.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append([]chatapi.Agent(nil), agents...)
}

// Sent returns the messages received so far.
func (s *Service) Sent() []chatapi.SendMessageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatapi.SendMessageRequest(nil), s.sent...)
}

// History returns the stored history.
func (s *Service) History(_ context.Context, agentID string) ([]chatapi.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	return append([]chatapi.HistoryItem(nil), s.history[agentID]...), nil
}

// Cost returns the stored cost, 1 if unset.
func (s *Service) Cost(_ context.Context, agentID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CostErr != nil {
		return 0, s.CostErr
	}
	if c, ok := s.costs[agentID]; ok {
		return c, nil
	}
	return 1, nil
}

// Agents returns the stored agents.
func (s *Service) Agents(context.Context) ([]chatapi.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AgentsErr != nil {
		return nil, s.AgentsErr
	}
	return append([]chatapi.Agent(nil), s.agents...), nil
}

// CreateAgent appends an agent.
func (s *Service) CreateAgent(_ context.Context, req chatapi.CreateAgentRequest) (chatapi.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	a := chatapi.Agent{
		ID:                fmt.Sprintf("agent-%d", s.seq),
		OwnerID:           req.OwnerID,
		Name:              req.Name,
		SystemPrompt:      req.SystemPrompt,
		ImageURL:          req.ImageURL,
		RestrictedPhrases: req.RestrictedPhrases,
		InitialPrizePool:  req.InitialPrizePool,
		CurrentPrizePool:  req.InitialPrizePool,
		MessageCost:       1,
	}
	s.agents = append(s.agents, a)
	return a, nil
}

// SendMessage records req and returns the scripted reply.
func (s *Service) SendMessage(ctx context.Context, req chatapi.SendMessageRequest) (chatapi.SendMessageResponse, error) {
	s.mu.Lock()
	hook := s.BeforeSend
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return chatapi.SendMessageResponse{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return chatapi.SendMessageResponse{}, s.SendErr
	}

	s.sent = append(s.sent, req)
	s.seq++
	msgID := fmt.Sprintf("msg-%d", s.seq)
	s.seq++
	replyID := fmt.Sprintf("msg-%d", s.seq)

	s.history[req.AgentID] = append(s.history[req.AgentID],
		chatapi.HistoryItem{ID: msgID, Role: "user", Content: req.Message, UserID: req.UserID, Username: req.Username, AgentID: req.AgentID},
		chatapi.HistoryItem{ID: replyID, Role: "assistant", Content: s.Reply, UserID: "bot", Username: "ChatBot", AgentID: req.AgentID},
	)
	if s.NextCost > 0 {
		s.costs[req.AgentID] = s.NextCost
	}
	if s.LostResponseErr != nil {
		return chatapi.SendMessageResponse{}, s.LostResponseErr
	}

	return chatapi.SendMessageResponse{Response: s.Reply, Success: true, MessageID: msgID, ReplyID: replyID}, nil
}
