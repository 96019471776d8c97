package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. SequenceID is assigned by the
// store on insert and is the authoritative ordering key; CreatedAt may
// collide between two messages written in the same instant.
type Message struct {
	SequenceID     int64     `json:"sequence_id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Sources        []string  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
