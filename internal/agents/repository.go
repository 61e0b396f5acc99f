// Package agents keeps the list of agents and the current selection.
package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"paidchat/internal/chatapi"
	"paidchat/internal/domain"
)

// ErrNotFound is returned for unknown agent ids.
var ErrNotFound = errors.New("agent not found")

// Lister lists agents from the Conversation Service.
type Lister interface {
	Agents(ctx context.Context) ([]chatapi.Agent, error)
}

// Repository is a keyed agent store with a selected entry.
type Repository struct {
	source Lister
	logger *log.Logger

	mu       sync.RWMutex
	order    []string
	byID     map[string]domain.Agent
	selected string
}

// NewRepository creates an empty Repository.
func NewRepository(source Lister, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Repository{
		source: source,
		logger: logger,
		byID:   make(map[string]domain.Agent),
	}
}

// Refresh reloads the agents. The first agent is selected when nothing is
// selected or the selection disappeared. If loading fails and no agents are
// known, the default agent is installed so the chat stays usable.
func (r *Repository) Refresh(ctx context.Context) error {
	list, err := r.source.Agents(ctx)
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if len(r.order) == 0 {
			r.logger.Printf("agent list unavailable, using default agent: %v", err)
			r.replace([]domain.Agent{domain.DefaultAgent})
		}
		return fmt.Errorf("list agents: %w", err)
	}

	agents := make([]domain.Agent, 0, len(list))
	for _, a := range list {
		agents = append(agents, chatapi.ToDomainAgent(a))
	}
	if len(agents) == 0 {
		agents = append(agents, domain.DefaultAgent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.replace(agents)
	return nil
}

func (r *Repository) replace(agents []domain.Agent) {
	r.order = r.order[:0]
	r.byID = make(map[string]domain.Agent, len(agents))
	for _, a := range agents {
		if _, dup := r.byID[a.ID]; dup {
			continue
		}
		r.order = append(r.order, a.ID)
		r.byID[a.ID] = a
	}
	if _, ok := r.byID[r.selected]; !ok {
		r.selected = r.order[0]
	}
}

// Get returns the agent with id.
func (r *Repository) Get(id string) (domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return domain.Agent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneAgent(a), nil
}

// List returns agents in service order.
func (r *Repository) List() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneAgent(r.byID[id]))
	}
	return out
}

// Select makes id the current agent.
func (r *Repository) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.selected = id
	return nil
}

// Selected returns the current agent.
func (r *Repository) Selected() (domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[r.selected]
	if !ok {
		return domain.Agent{}, false
	}
	return cloneAgent(a), true
}

// UpdateCost records a fresh per-message cost for id.
func (r *Repository) UpdateCost(id string, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.MessageCost = cost
		r.byID[id] = a
	}
}

func cloneAgent(a domain.Agent) domain.Agent {
	a.RestrictedPhrases = append([]string(nil), a.RestrictedPhrases...)
	return a
}
