package models

import "time"

// Roles recorded in a conversation window.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user, assistant, or system
	Content        string    `json:"content"`
	Position       int       `json:"position"` // insertion order within the conversation
	CreatedAt      time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"conversation_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
