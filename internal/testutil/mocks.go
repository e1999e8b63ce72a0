package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/devaloi/socialchat/internal/domain"
)

// MockClient implements presence.Handle and hub.Member for testing.
type MockClient struct {
	Name     string
	id       string
	messages [][]byte
	mu       sync.Mutex
}

// NewMockClient creates a new MockClient for the given user.
func NewMockClient(name string) *MockClient {
	return &MockClient{Name: name, id: uuid.NewString()}
}

// ID returns the mock connection id.
func (m *MockClient) ID() string { return m.id }

// UserID returns the mock client's user.
func (m *MockClient) UserID() string { return m.Name }

// Send records a frame sent to the mock client.
func (m *MockClient) Send(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.messages = append(m.messages, cp)
}

// GetMessages returns a copy of all frames received by the mock client.
func (m *MockClient) GetMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]byte, len(m.messages))
	copy(cp, m.messages)
	return cp
}

// Events decodes received frames of the given event type.
func (m *MockClient) Events(event string) []json.RawMessage {
	var out []json.RawMessage
	for _, frame := range m.GetMessages() {
		env, err := domain.Decode(frame)
		if err == nil && env.Event == event {
			out = append(out, env.Data)
		}
	}
	return out
}

// ErrStoreDown is returned by a MockStore with Fail set.
var ErrStoreDown = errors.New("mock store down")

// MockStore implements store.Store in memory.
type MockStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	// Fail makes every write return ErrStoreDown.
	Fail bool
	// Delay is slept, honouring ctx, before every write.
	Delay time.Duration
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (s *MockStore) write(ctx context.Context) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrStoreDown
	}
	return nil
}

// SetFail toggles write failures.
func (s *MockStore) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail = fail
}

// Seed stores c as-is and returns it. Useful for fixed ids in tests.
func (s *MockStore) Seed(c domain.Conversation) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.conversations[c.ID] = c
	return c
}

func (s *MockStore) CreateConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error) {
	if err := s.write(ctx); err != nil {
		return domain.Conversation{}, err
	}
	c.ID = ""
	c.CreatedAt = time.Time{}
	return s.Seed(c), nil
}

func (s *MockStore) FindConversation(_ context.Context, id string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	c.Members = append([]string(nil), c.Members...)
	return c, nil
}

func (s *MockStore) FindDirectConversation(_ context.Context, a, b string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if !c.IsGroup && c.HasMember(a) && c.HasMember(b) {
			return c, nil
		}
	}
	return domain.Conversation{}, fmt.Errorf("%w: direct conversation %s/%s", domain.ErrNotFound, a, b)
}

func (s *MockStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.conversations), func(c domain.Conversation, _ int) bool {
		return c.HasMember(userID)
	}), nil
}

func (s *MockStore) AddMembers(ctx context.Context, conversationID string, members []string) error {
	if err := s.write(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conversations[conversationID]
	c.Members = lo.Uniq(append(c.Members, members...))
	s.conversations[conversationID] = c
	return nil
}

func (s *MockStore) RemoveMember(ctx context.Context, conversationID, userID string) error {
	if err := s.write(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conversations[conversationID]
	c.Members = lo.Without(c.Members, userID)
	s.conversations[conversationID] = c
	return nil
}

func (s *MockStore) CreateMessage(ctx context.Context, conversationID, senderID, text string) (domain.Message, error) {
	if err := s.write(ctx); err != nil {
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = append(s.messages[conversationID], m)
	return m, nil
}

func (s *MockStore) History(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message(nil), msgs...), nil
}

// MessageCount returns how many messages were stored for a conversation.
func (s *MockStore) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID])
}

// Close is a no-op for the mock store.
func (s *MockStore) Close() error { return nil }
