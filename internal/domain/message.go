package domain

import (
	"time"
)

// Message is a persisted chat message. Messages are immutable once created.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"chat_id"`
	SenderID       string    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
