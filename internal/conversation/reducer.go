// Package conversation holds per-agent message history and the pure
// reducer the send flow uses to mutate it.
package conversation

import "paidchat/internal/domain"

// Event is a conversation state transition.
type Event interface {
	isEvent()
}

// MessageOptimisticallyAdded appends a not yet paid-for user message.
type MessageOptimisticallyAdded struct {
	Message domain.Message
}

// MessageRolledBack removes the optimistic message with TempID.
type MessageRolledBack struct {
	TempID string
}

// MessageConfirmed swaps TempID for the durable ID. Nothing else changes.
type MessageConfirmed struct {
	TempID string
	ID     string
}

// ReplyAppended appends an agent reply.
type ReplyAppended struct {
	Message domain.Message
}

func (MessageOptimisticallyAdded) isEvent() {}
func (MessageRolledBack) isEvent()          {}
func (MessageConfirmed) isEvent()           {}
func (ReplyAppended) isEvent()              {}

// Reduce returns the conversation after ev. conv is never modified.
func Reduce(conv []domain.Message, ev Event) []domain.Message {
	switch e := ev.(type) {
	case MessageOptimisticallyAdded:
		if indexOf(conv, e.Message.ID) >= 0 {
			return clone(conv)
		}
		return append(clone(conv), e.Message)

	case MessageRolledBack:
		out := make([]domain.Message, 0, len(conv))
		for _, m := range conv {
			if m.ID != e.TempID {
				out = append(out, m)
			}
		}
		return out

	case MessageConfirmed:
		out := clone(conv)
		i := indexOf(out, e.TempID)
		if i < 0 || e.ID == "" {
			return out
		}
		// The same message under the durable id means the confirmation was
		// applied. A different message sharing the id is kept as is.
		if j := indexOf(out, e.ID); j >= 0 && sameMessage(out[j], out[i]) {
			return append(out[:i], out[i+1:]...)
		}
		out[i].ID = e.ID
		return out

	case ReplyAppended:
		if e.Message.ID != "" {
			if j := indexOf(conv, e.Message.ID); j >= 0 && sameMessage(conv[j], e.Message) {
				return clone(conv)
			}
		}
		return append(clone(conv), e.Message)
	}
	return clone(conv)
}

func indexOf(conv []domain.Message, id string) int {
	for i := range conv {
		if conv[i].ID == id {
			return i
		}
	}
	return -1
}

func sameMessage(a, b domain.Message) bool {
	return a.Role == b.Role && a.Content == b.Content
}

func clone(conv []domain.Message) []domain.Message {
	out := make([]domain.Message, len(conv), len(conv)+2)
	copy(out, conv)
	return out
}
