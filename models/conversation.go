package models

import (
	"time"
)

// Role tags who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r may be stored as part of a conversation.
// The system instruction is never persisted.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one persisted turn of a user's conversation.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is the (role, text) pair handed to the completion service.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Turn drops the storage metadata from m.
func (m Message) Turn() Turn {
	return Turn{Role: m.Role, Text: m.Content}
}
