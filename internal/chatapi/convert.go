package chatapi

import "paidchat/internal/domain"

// ToDomainAgent converts a wire agent.
func ToDomainAgent(a Agent) domain.Agent {
	return domain.Agent{
		ID:                a.ID,
		OwnerID:           a.OwnerID,
		Name:              a.Name,
		Avatar:            a.ImageURL,
		Description:       a.Description,
		SystemPrompt:      a.SystemPrompt,
		RestrictedPhrases: append([]string(nil), a.RestrictedPhrases...),
		MessageCost:       a.MessageCost,
		InitialPrizePool:  a.InitialPrizePool,
		PrizePool:         a.CurrentPrizePool,
	}
}

// FromDomainAgent converts a domain agent for the wire. The system prompt is
// withheld unless includePrompt is set.
func FromDomainAgent(a domain.Agent, includePrompt bool) Agent {
	out := Agent{
		ID:                a.ID,
		OwnerID:           a.OwnerID,
		Name:              a.Name,
		Description:       a.Description,
		ImageURL:          a.Avatar,
		RestrictedPhrases: append([]string{}, a.RestrictedPhrases...),
		InitialPrizePool:  a.InitialPrizePool,
		CurrentPrizePool:  a.PrizePool,
		MessageCost:       a.MessageCost,
	}
	if includePrompt {
		out.SystemPrompt = a.SystemPrompt
	}
	return out
}

// ToDomainMessage converts a history entry. Unknown roles map to user.
func ToDomainMessage(h HistoryItem, agentID string) domain.Message {
	role := domain.Role(h.Role)
	if !role.IsValid() {
		role = domain.RoleUser
	}
	name := h.Username
	if name == "" {
		name = h.UserID
	}
	if h.AgentID != "" {
		agentID = h.AgentID
	}
	return domain.Message{
		ID:      h.ID,
		Role:    role,
		Content: h.Content,
		AgentID: agentID,
		Name:    name,
	}
}

// FromStoredMessage converts a persisted row for the wire.
func FromStoredMessage(m domain.StoredMessage) HistoryItem {
	return HistoryItem{
		ID:       m.ID,
		Role:     m.Role().String(),
		Content:  m.Content,
		UserID:   m.UserID,
		Username: m.Username,
		AgentID:  m.AgentID,
	}
}

// FromDomainStats converts agent statistics to the wire format.
func FromDomainStats(s domain.AgentStats) AgentStats {
	return AgentStats{
		AgentID:          s.AgentID,
		Exchanges:        s.Exchanges,
		Users:            s.Users,
		Wins:             s.Wins,
		Timeouts:         s.Timeouts,
		TimeoutRate:      s.TimeoutRate,
		LatencyMeanMs:    s.LatencyMeanMs,
		LatencyMedianMs:  s.LatencyMedianMs,
		LatencyP90Ms:     s.LatencyP90Ms,
		LatencyStddevMs:  s.LatencyStddevMs,
		MaxTimeoutStreak: s.MaxTimeoutStreak,
		PeakMultiplier:   s.PeakMultiplier,
		FirstAt:          s.FirstAt,
		LastAt:           s.LastAt,
	}
}
