package conversation

import (
	"sync"

	"paidchat/internal/domain"
)

// Store keeps one conversation per agent id.
type Store struct {
	mu    sync.RWMutex
	convs map[string][]domain.Message
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{convs: make(map[string][]domain.Message)}
}

// Apply reduces ev into the conversation of agentID and returns the result.
func (s *Store) Apply(agentID string, ev Event) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Reduce(s.convs[agentID], ev)
	s.convs[agentID] = next
	return clone(next)
}

// Messages returns a copy of the conversation of agentID.
func (s *Store) Messages(agentID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.convs[agentID])
}

// Load installs history for agentID. Messages already in the store that the
// history does not contain, such as optimistic ones, are kept after it. A
// temporary user message is dropped once history carries it under an id the
// store has not seen before.
func (s *Store) Load(agentID string, history []domain.Message) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.convs[agentID]
	known := make(map[string]bool, len(current))
	for _, m := range current {
		if m.ID != "" && !m.IsTemporary() {
			known[m.ID] = true
		}
	}

	merged := make([]domain.Message, 0, len(history)+len(current))
	seen := make(map[string]bool, len(history))
	persisted := make(map[string]int)
	for _, m := range history {
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		if m.Role == domain.RoleUser && !known[m.ID] {
			persisted[m.Content]++
		}
		merged = append(merged, m)
	}
	for _, m := range current {
		if m.IsTemporary() && m.Role == domain.RoleUser && persisted[m.Content] > 0 {
			persisted[m.Content]--
			continue
		}
		if m.ID == "" || !seen[m.ID] {
			merged = append(merged, m)
		}
	}
	s.convs[agentID] = merged
	return clone(merged)
}

// Clear drops the conversation of agentID.
func (s *Store) Clear(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, agentID)
}

// ClearAll drops every conversation.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = make(map[string][]domain.Message)
}
