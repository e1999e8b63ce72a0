// Package router validates, persists and delivers chat messages.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/domain"
	"github.com/devaloi/socialchat/internal/hub"
	"github.com/devaloi/socialchat/internal/presence"
	"github.com/devaloi/socialchat/internal/store"
)

// Presence resolves a user to their live connection.
type Presence interface {
	Lookup(userID string) (presence.Handle, bool)
}

// Broadcaster fans a payload out to a live room.
type Broadcaster interface {
	Broadcast(room string, payload []byte, exclude hub.Member) int
}

// Options tune the router.
type Options struct {
	// StoreTimeout bounds every persistence call.
	StoreTimeout time.Duration
	// PersistGroupMessages makes group sends durable: the room id must name
	// a group conversation the sender belongs to, and the message is stored
	// before it is broadcast.
	PersistGroupMessages bool
}

// Router routes one message at a time. It holds no per-conversation lock:
// sends from different connections may interleave while a store write is in
// flight, but a single send always persists before it delivers.
type Router struct {
	store    store.Store
	presence Presence
	rooms    Broadcaster
	opts     Options
	log      *zap.Logger
}

// New creates a Router.
func New(s store.Store, p Presence, rooms Broadcaster, opts Options, log *zap.Logger) *Router {
	return &Router{store: s, presence: p, rooms: rooms, opts: opts, log: log}
}

// SendDirect validates body, checks that senderID belongs to the
// conversation, persists the message and delivers it to every other member
// that is online. Offline members get nothing; they read history later.
func (r *Router) SendDirect(ctx context.Context, senderID, conversationID, body string) (domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}

	conv, err := r.findConversation(ctx, conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conv.HasMember(senderID) {
		return domain.Message{}, fmt.Errorf("%w: not a member of conversation %s", domain.ErrForbidden, conv.ID)
	}

	msg, err := r.persist(ctx, conv.ID, senderID, body)
	if err != nil {
		return domain.Message{}, err
	}

	frame, err := domain.Encode(domain.EvReceiveMessage, domain.NewReceiveMessage(msg))
	if err != nil {
		r.log.Error("encode message", zap.String("message_id", msg.ID), zap.Error(err))
		return msg, nil
	}
	delivered := 0
	for _, peer := range conv.Peers(senderID) {
		if h, ok := r.presence.Lookup(peer); ok {
			h.Send(frame)
			delivered++
		}
	}
	r.log.Debug("direct message routed",
		zap.String("message_id", msg.ID),
		zap.String("chat_id", conv.ID),
		zap.String("sender", senderID),
		zap.Int("delivered", delivered))
	return msg, nil
}

// SendGroup fans body out to the live members of a broadcast room, never
// back to sender. Unless PersistGroupMessages is set there is no membership
// check and nothing is stored.
func (r *Router) SendGroup(ctx context.Context, sender hub.Member, roomID, body string) (int, error) {
	if strings.TrimSpace(body) == "" {
		return 0, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}
	if roomID == "" {
		return 0, fmt.Errorf("%w: group id is required", domain.ErrValidation)
	}

	payload := domain.ReceiveGroupMessage{Message: body, GroupID: roomID, Sender: sender.UserID()}
	if r.opts.PersistGroupMessages {
		conv, err := r.findConversation(ctx, roomID)
		if err != nil {
			return 0, err
		}
		if !conv.IsGroup {
			return 0, fmt.Errorf("%w: group %s", domain.ErrNotFound, roomID)
		}
		if !conv.HasMember(sender.UserID()) {
			return 0, fmt.Errorf("%w: not a member of group %s", domain.ErrForbidden, roomID)
		}
		msg, err := r.persist(ctx, conv.ID, sender.UserID(), body)
		if err != nil {
			return 0, err
		}
		payload.MessageID = msg.ID
	}

	frame, err := domain.Encode(domain.EvReceiveGroupMessage, payload)
	if err != nil {
		return 0, err
	}
	return r.rooms.Broadcast(roomID, frame, sender), nil
}

func (r *Router) findConversation(ctx context.Context, id string) (domain.Conversation, error) {
	if id == "" {
		return domain.Conversation{}, fmt.Errorf("%w: chat id is required", domain.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()

	conv, err := r.store.FindConversation(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.Conversation{}, err
	case err != nil:
		r.log.Error("find conversation", zap.String("chat_id", id), zap.Error(err))
		return domain.Conversation{}, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return conv, nil
}

func (r *Router) persist(ctx context.Context, conversationID, senderID, body string) (domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StoreTimeout)
	defer cancel()

	msg, err := r.store.CreateMessage(ctx, conversationID, senderID, body)
	if err != nil {
		r.log.Error("persist message",
			zap.String("chat_id", conversationID),
			zap.String("sender", senderID),
			zap.Error(err))
		return domain.Message{}, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return msg, nil
}
