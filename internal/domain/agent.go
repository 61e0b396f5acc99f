package domain

import "strings"

// Agent is a configured persona guarding one or more restricted phrases.
// Fiat amounts are USD.
type Agent struct {
	ID                string
	OwnerID           string
	Name              string
	Avatar            string // image reference
	Description       string
	SystemPrompt      string
	RestrictedPhrases []string // matched case-insensitively
	MessageCost       float64  // current per-message cost
	InitialPrizePool  float64
	PrizePool         float64 // current prize pool
	CreatedAt         int64   // Unix ms
	UpdatedAt         int64   // Unix ms
}

// DefaultAgentID identifies the fallback persona.
const DefaultAgentID = "default"

// DefaultAgent is used when the agent list cannot be loaded.
var DefaultAgent = Agent{
	ID:                DefaultAgentID,
	Name:              "Pixie",
	Avatar:            "/default-agent-avatar.jpg",
	Description:       "AI agent with a prize pool",
	RestrictedPhrases: []string{"I love you"},
	MessageCost:       1.00,
	InitialPrizePool:  15000,
	PrizePool:         15000,
}

// MatchesRestrictedPhrase reports whether text contains any of the agent's
// restricted phrases, ignoring case. Empty phrases never match.
func (a *Agent) MatchesRestrictedPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range a.RestrictedPhrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
