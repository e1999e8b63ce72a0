package domain

import (
	"time"

	"github.com/samber/lo"
)

// Conversation is a persisted direct or group chat.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Members   []string  `json:"members"`
	IsGroup   bool      `json:"is_group"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether userID currently belongs to the conversation.
func (c Conversation) HasMember(userID string) bool {
	return lo.Contains(c.Members, userID)
}

// Peers returns every member except userID, in member order.
func (c Conversation) Peers(userID string) []string {
	return lo.Without(c.Members, userID)
}

// IsCreator reports whether userID created this group.
func (c Conversation) IsCreator(userID string) bool {
	return c.IsGroup && c.CreatedBy != "" && c.CreatedBy == userID
}
