// Package chatapi defines the Conversation Service wire contract and an
// HTTP client for it.
package chatapi

// SendMessageRequest is the body of POST /chat.
type SendMessageRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	AgentID  string `json:"agentId"`
}

// ReplyMessage is the structured reply some deployments return.
type ReplyMessage struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

// SendMessageResponse is the body returned by POST /chat.
type SendMessageResponse struct {
	Response  string        `json:"response"`
	Success   bool          `json:"success,omitempty"`
	Message   *ReplyMessage `json:"message,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	ReplyID   string        `json:"replyId,omitempty"`
}

// ReplyText returns the agent reply regardless of response shape.
func (r *SendMessageResponse) ReplyText() string {
	if r.Response != "" {
		return r.Response
	}
	if r.Message != nil {
		return r.Message.Content
	}
	return ""
}

// ReplyMessageID returns the durable id of the reply, if the service sent one.
func (r *SendMessageResponse) ReplyMessageID() string {
	if r.ReplyID != "" {
		return r.ReplyID
	}
	if r.Message != nil {
		return r.Message.ID
	}
	return ""
}

// HistoryItem is one entry of GET /chat/messages.
type HistoryItem struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	AgentID  string `json:"agentId,omitempty"`
}

// CostResponse is the body of GET /chat/cost.
type CostResponse struct {
	Cost float64 `json:"cost"`
}

// Agent is one entry of GET /agents.
type Agent struct {
	ID                string   `json:"id"`
	OwnerID           string   `json:"ownerId,omitempty"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	SystemPrompt      string   `json:"systemPrompt,omitempty"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	RestrictedPhrases []string `json:"restrictedPhrases"`
	InitialPrizePool  float64  `json:"initialPrizePool"`
	CurrentPrizePool  float64  `json:"currentPrizePool"`
	MessageCost       float64  `json:"messageCost"`
}

// CreateAgentRequest is the body of POST /agents.
type CreateAgentRequest struct {
	OwnerID           string   `json:"ownerId"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	SystemPrompt      string   `json:"systemPrompt"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	RestrictedPhrases []string `json:"restrictedPhrases"`
	InitialPrizePool  float64  `json:"initialPrizePool"`
}

// AgentStats is the body of GET /agents/{id}/stats.
type AgentStats struct {
	AgentID          string  `json:"agentId"`
	Exchanges        int     `json:"exchanges"`
	Users            int     `json:"users"`
	Wins             int     `json:"wins"`
	Timeouts         int     `json:"timeouts"`
	TimeoutRate      float64 `json:"timeoutRate"`
	LatencyMeanMs    float64 `json:"latencyMeanMs"`
	LatencyMedianMs  float64 `json:"latencyMedianMs"`
	LatencyP90Ms     float64 `json:"latencyP90Ms"`
	LatencyStddevMs  float64 `json:"latencyStddevMs"`
	MaxTimeoutStreak int     `json:"maxTimeoutStreak"`
	PeakMultiplier   float64 `json:"peakMultiplier"`
	FirstAt          int64   `json:"firstAt,omitempty"`
	LastAt           int64   `json:"lastAt,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
