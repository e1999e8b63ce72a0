// Package conversation owns the rules for opening chats and editing group
// membership. Only a group's creator may add or remove members, and the
// creator can never be removed.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/domain"
	"github.com/devaloi/socialchat/internal/store"
)

// Service applies conversation rules on top of a Store.
type Service struct {
	store      store.Store
	timeout    time.Duration
	maxHistory int
	log        *zap.Logger
}

// NewService creates a Service. timeout bounds each store call and
// maxHistory caps History.
func NewService(s store.Store, timeout time.Duration, maxHistory int, log *zap.Logger) *Service {
	return &Service{store: s, timeout: timeout, maxHistory: maxHistory, log: log}
}

// OpenDirect returns the direct conversation between actor and peer,
// creating it on first use.
func (s *Service) OpenDirect(ctx context.Context, actor, peer string) (domain.Conversation, error) {
	if peer == "" || peer == actor {
		return domain.Conversation{}, fmt.Errorf("%w: a direct chat needs two distinct users", domain.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.FindDirectConversation(ctx, actor, peer)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Conversation{}, s.storeErr("find direct conversation", err)
	}
	c, err = s.store.CreateConversation(ctx, domain.Conversation{Members: []string{actor, peer}})
	if err != nil {
		return domain.Conversation{}, s.storeErr("create direct conversation", err)
	}
	return c, nil
}

// CreateGroup creates a named group owned by actor. At least two other
// members are required; actor is always included.
func (s *Service) CreateGroup(ctx context.Context, actor, name string, members []string) (domain.Conversation, error) {
	name = strings.TrimSpace(name)
	others := lo.Without(lo.Uniq(lo.Compact(members)), actor)
	if name == "" || len(others) < 2 {
		return domain.Conversation{}, fmt.Errorf("%w: group must have a name and at least 2 members", domain.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.store.CreateConversation(ctx, domain.Conversation{
		Name:      name,
		Members:   append([]string{actor}, others...),
		IsGroup:   true,
		CreatedBy: actor,
	})
	if err != nil {
		return domain.Conversation{}, s.storeErr("create group", err)
	}
	return c, nil
}

// AddMembers adds members to a group owned by actor.
func (s *Service) AddMembers(ctx context.Context, actor, groupID string, members []string) (domain.Conversation, error) {
	members = lo.Uniq(lo.Compact(members))
	if len(members) == 0 {
		return domain.Conversation{}, fmt.Errorf("%w: no members given", domain.ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.ownedGroup(ctx, actor, groupID, "add"); err != nil {
		return domain.Conversation{}, err
	}
	if err := s.store.AddMembers(ctx, groupID, members); err != nil {
		return domain.Conversation{}, s.storeErr("add members", err)
	}
	return s.find(ctx, groupID)
}

// RemoveMember removes member from a group owned by actor.
func (s *Service) RemoveMember(ctx context.Context, actor, groupID, member string) (domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.ownedGroup(ctx, actor, groupID, "remove")
	if err != nil {
		return domain.Conversation{}, err
	}
	if member == g.CreatedBy {
		return domain.Conversation{}, fmt.Errorf("%w: the group creator cannot be removed", domain.ErrValidation)
	}
	if err := s.store.RemoveMember(ctx, groupID, member); err != nil {
		return domain.Conversation{}, s.storeErr("remove member", err)
	}
	return s.find(ctx, groupID)
}

// List returns the conversations actor belongs to.
func (s *Service) List(ctx context.Context, actor string) ([]domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	convs, err := s.store.ListConversations(ctx, actor)
	if err != nil {
		return nil, s.storeErr("list conversations", err)
	}
	return convs, nil
}

// History returns up to limit recent messages, oldest first, to a member.
// A non-positive or oversized limit is clamped to the configured maximum.
func (s *Service) History(ctx context.Context, actor, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > s.maxHistory {
		limit = s.maxHistory
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(actor) {
		return nil, fmt.Errorf("%w: not a member of conversation %s", domain.ErrForbidden, c.ID)
	}
	msgs, err := s.store.History(ctx, c.ID, limit)
	if err != nil {
		return nil, s.storeErr("history", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *Service) ownedGroup(ctx context.Context, actor, groupID, action string) (domain.Conversation, error) {
	g, err := s.find(ctx, groupID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !g.IsGroup {
		return domain.Conversation{}, fmt.Errorf("%w: group %s", domain.ErrNotFound, groupID)
	}
	if !g.IsCreator(actor) {
		return domain.Conversation{}, fmt.Errorf("%w: only the group creator can %s members", domain.ErrForbidden, action)
	}
	return g, nil
}

func (s *Service) find(ctx context.Context, id string) (domain.Conversation, error) {
	c, err := s.store.FindConversation(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Conversation{}, s.storeErr("find conversation", err)
	}
	return c, err
}

func (s *Service) storeErr(op string, err error) error {
	s.log.Error(op, zap.Error(err))
	return fmt.Errorf("%w: %w", domain.ErrStore, err)
}
