package domain

// Exchange is one analytics row per processed message: who talked to which
// agent, at what multiplier, and how the responder behaved.
type Exchange struct {
	ExchangeID      string
	AgentID         string
	UserID          string
	Multiplier      float64 // multiplier charged for this message
	NextMultiplier  float64 // multiplier after escalation
	ResponseLatency int64   // ms
	TimedOut        bool
	Won             bool // reply contained a restricted phrase
	PromptChars     int
	ReplyChars      int
	CreatedAt       int64 // Unix ms
}

// AgentStats summarizes the exchanges of one agent.
type AgentStats struct {
	AgentID          string
	Exchanges        int
	Users            int // distinct senders
	Wins             int
	Timeouts         int
	TimeoutRate      float64
	LatencyMeanMs    float64
	LatencyMedianMs  float64
	LatencyP90Ms     float64
	LatencyStddevMs  float64
	MaxTimeoutStreak int
	PeakMultiplier   float64
	FirstAt          int64 // Unix ms
	LastAt           int64 // Unix ms
}
