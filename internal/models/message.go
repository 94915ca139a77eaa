// Package models defines the conversation data structures shared across minne.
package models

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "USER"
	RoleAI     Role = "AI"
	RoleSystem Role = "SYSTEM"
)

// Message is a single conversation turn. Immutable once created; ordering is
// defined by Order, not by arrival time at the store.
type Message struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	TS    int64  `json:"ts"`    // unix milliseconds
	Order int64  `json:"order"` // monotonic per conversation
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Text: text,
		TS:   time.Now().UnixMilli(),
	}
}

// NewUserMessage creates a user turn stamped with the current time.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// NewAIMessage creates an assistant turn stamped with the current time.
func NewAIMessage(text string) Message { return NewMessage(RoleAI, text) }

// NewSystemMessage creates a system message stamped with the current time.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, text) }
