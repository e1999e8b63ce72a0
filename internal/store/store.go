package store

import (
	"context"

	"github.com/devaloi/socialchat/internal/domain"
)

// Store defines conversation and message persistence.
// Lookups of absent records return an error wrapping domain.ErrNotFound.
type Store interface {
	// CreateConversation persists c, assigning an id and creation time.
	CreateConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error)
	// FindConversation returns the conversation with the given id.
	FindConversation(ctx context.Context, id string) (domain.Conversation, error)
	// FindDirectConversation returns the direct conversation between a and b.
	FindDirectConversation(ctx context.Context, a, b string) (domain.Conversation, error)
	// ListConversations returns every conversation userID belongs to.
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	// AddMembers appends members that are not already part of the conversation.
	AddMembers(ctx context.Context, conversationID string, members []string) error
	// RemoveMember drops a member from the conversation.
	RemoveMember(ctx context.Context, conversationID, userID string) error
	// CreateMessage persists a new message stamped with the current time.
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (domain.Message, error)
	// History returns the last `limit` messages of a conversation, oldest first.
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	// Close releases any resources held by the store.
	Close() error
}
