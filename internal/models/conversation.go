package models

import "time"

// Conversation is a titled container for an ordered run of messages.
// The ID is assigned once, when the first assistant reply is persisted,
// and never changes afterwards.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
