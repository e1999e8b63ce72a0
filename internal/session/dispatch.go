package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/domain"
)

// HandlerFunc handles one inbound event for a session.
type HandlerFunc func(ctx context.Context, s *Session, data json.RawMessage) error

var handlers = map[string]HandlerFunc{
	domain.EvJoinGroup:          handleJoinGroup,
	domain.EvLeaveGroup:         handleLeaveGroup,
	domain.EvSendMessage:        handleSendMessage,
	domain.EvSendMessageInGroup: handleSendGroup,
	domain.EvGetUser:            handleGetUser,
}

var validate = validator.New()

// handleFrame decodes and dispatches one frame. Every failure is reported to
// this connection as an error event and never ends the session.
func (s *Session) handleFrame(frame []byte) {
	env, err := domain.Decode(frame)
	if err != nil {
		s.sendError(fmt.Errorf("%w: invalid JSON", domain.ErrValidation))
		return
	}
	h, ok := handlers[env.Event]
	if !ok {
		s.sendError(fmt.Errorf("%w: unknown event %q", domain.ErrValidation, env.Event))
		return
	}
	if err := h(s.ctx, s, env.Data); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Debug("event failed", zap.String("event", env.Event), zap.Error(err))
		s.sendError(err)
	}
}

func handleJoinGroup(_ context.Context, s *Session, data json.RawMessage) error {
	roomID, err := decodeID(data, "room id")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return context.Canceled
	}
	return s.deps.Hub.Join(roomID, s)
}

func handleLeaveGroup(_ context.Context, s *Session, data json.RawMessage) error {
	roomID, err := decodeID(data, "room id")
	if err != nil {
		return err
	}
	s.deps.Hub.Leave(roomID, s)
	return nil
}

func handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var p domain.SendMessagePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	_, err := s.deps.Router.SendDirect(ctx, s.userID, p.ChatID, p.Text)
	return err
}

func handleSendGroup(ctx context.Context, s *Session, data json.RawMessage) error {
	var p domain.SendGroupPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	_, err := s.deps.Router.SendGroup(ctx, s, p.GroupID, p.Message)
	return err
}

// handleGetUser answers with the user's socket id, or null when offline.
// Local presence wins; the mirror covers users held by other instances.
func handleGetUser(ctx context.Context, s *Session, data json.RawMessage) error {
	userID, err := decodeID(data, "user id")
	if err != nil {
		return err
	}
	if h, ok := s.deps.Presence.Lookup(userID); ok {
		s.emit(domain.EvUserSocketID, h.ID())
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	socketID, ok, err := s.deps.Mirror.Lookup(ctx, userID)
	if err != nil {
		s.log.Warn("presence mirror lookup", zap.String("target", userID), zap.Error(err))
	}
	if ok {
		s.emit(domain.EvUserSocketID, socketID)
		return nil
	}
	s.emit(domain.EvUserSocketID, nil)
	return nil
}

func decodeID(data json.RawMessage, what string) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil || id == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, what)
	}
	return id, nil
}

func decodePayload(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
