package domain

import "strings"

// Role is the author role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid value.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// TempIDPrefix marks client-assigned ids of unconfirmed messages.
const TempIDPrefix = "tmp-"

// Message is one entry of a conversation as seen by the client.
type Message struct {
	ID      string // temporary (TempIDPrefix) until confirmed
	Role    Role
	Content string
	AgentID string
	Name    string // wallet address or agent name
}

// IsTemporary reports whether the message still carries a client-assigned id.
func (m *Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}
