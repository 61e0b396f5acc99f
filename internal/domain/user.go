package domain

// User is a chat participant known to the Conversation Service.
// Wallet users are keyed by address; agents reply as BotUserID.
type User struct {
	ID        string
	Username  string
	CreatedAt int64 // Unix ms
}

// Bot identity used for agent replies.
const (
	BotUserID   = "bot"
	BotUsername = "ChatBot"
)

// StoredMessage is a persisted message row of the Conversation Service.
type StoredMessage struct {
	ID        string
	AgentID   string
	UserID    string
	Username  string // joined from users on read
	Content   string
	IsBot     bool
	CreatedAt int64 // Unix ms
}

// Role maps the stored row to the client-facing role.
func (m *StoredMessage) Role() Role {
	if m.IsBot {
		return RoleAssistant
	}
	return RoleUser
}
