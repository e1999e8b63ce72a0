package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/domain"
	"github.com/devaloi/socialchat/internal/hub"
	"github.com/devaloi/socialchat/internal/presence"
	"github.com/devaloi/socialchat/internal/testutil"
)

type fixture struct {
	store    *testutil.MockStore
	presence *presence.Registry
	hub      *hub.Hub
	router   *Router
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.StoreTimeout == 0 {
		opts.StoreTimeout = time.Second
	}
	f := &fixture{
		store:    testutil.NewMockStore(),
		presence: presence.NewRegistry(zap.NewNop()),
		hub:      hub.New(10, zap.NewNop()),
	}
	f.router = New(f.store, f.presence, f.hub, opts, zap.NewNop())
	return f
}

func (f *fixture) direct(a, b string) domain.Conversation {
	return f.store.Seed(domain.Conversation{Members: []string{a, b}})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestSendDirectDeliversToOnlineMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	conv := f.direct("alice", "bob")

	alice := testutil.NewMockClient("alice")
	bob := testutil.NewMockClient("bob")
	f.presence.Register("alice", alice)
	f.presence.Register("bob", bob)

	msg, err := f.router.SendDirect(context.Background(), "alice", conv.ID, "hello")
	require.NoError(t, err)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, 1, f.store.MessageCount(conv.ID))

	got := bob.Events(domain.EvReceiveMessage)
	require.Len(t, got, 1)
	rm := decode[domain.ReceiveMessage](t, got[0])
	require.Equal(t, "hello", rm.Message)
	require.Equal(t, "alice", rm.Sender)
	require.Equal(t, msg.ID, rm.MessageID)
	require.Equal(t, conv.ID, rm.ChatID)

	require.Empty(t, alice.GetMessages(), "sender must not receive its own direct message")
}

func TestSendDirectPersistsWhenRecipientOffline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{})
	conv := f.direct("alice", "bob")

	// Given bob is offline
	_, err := f.router.SendDirect(ctx, "alice", conv.ID, "hello")
	require.NoError(t, err)

	// Then the message is stored
	history, err := f.store.History(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "alice", history[0].SenderID)
	require.Equal(t, "hello", history[0].Text)

	// And bob connecting later gets nothing pushed retroactively
	bob := testutil.NewMockClient("bob")
	f.presence.Register("bob", bob)
	require.Empty(t, bob.GetMessages())
}

func TestSendDirectRejectsNonMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	conv := f.direct("bob", "carol")
	bob := testutil.NewMockClient("bob")
	f.presence.Register("bob", bob)

	_, err := f.router.SendDirect(context.Background(), "alice", conv.ID, "hi")
	require.ErrorIs(t, err, domain.ErrForbidden)
	require.Zero(t, f.store.MessageCount(conv.ID))
	require.Empty(t, bob.GetMessages())
}

func TestSendDirectValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	conv := f.direct("alice", "bob")

	_, err := f.router.SendDirect(context.Background(), "alice", conv.ID, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.router.SendDirect(context.Background(), "alice", "", "hi")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.router.SendDirect(context.Background(), "alice", "missing", "hi")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendDirectStoreFailureIsNotDelivered(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	conv := f.direct("alice", "bob")
	bob := testutil.NewMockClient("bob")
	f.presence.Register("bob", bob)
	f.store.SetFail(true)

	_, err := f.router.SendDirect(context.Background(), "alice", conv.ID, "hello")
	require.ErrorIs(t, err, domain.ErrStore)
	require.ErrorIs(t, err, testutil.ErrStoreDown)
	require.Empty(t, bob.GetMessages())
}

func TestSendDirectStoreTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{StoreTimeout: 20 * time.Millisecond})
	conv := f.direct("alice", "bob")
	f.store.Delay = time.Second

	_, err := f.router.SendDirect(context.Background(), "alice", conv.ID, "hello")
	require.ErrorIs(t, err, domain.ErrStore)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, f.store.MessageCount(conv.ID))
}

func TestSendGroupBroadcastExcludesSender(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	alice := testutil.NewMockClient("alice")
	bob := testutil.NewMockClient("bob")
	require.NoError(t, f.hub.Join("R1", alice))
	require.NoError(t, f.hub.Join("R1", bob))

	n, err := f.router.SendGroup(context.Background(), alice, "R1", "hi room")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := bob.Events(domain.EvReceiveGroupMessage)
	require.Len(t, got, 1)
	gm := decode[domain.ReceiveGroupMessage](t, got[0])
	require.Equal(t, "hi room", gm.Message)
	require.Equal(t, "alice", gm.Sender)
	require.Empty(t, gm.MessageID, "pure fan-out stores nothing")

	require.Empty(t, alice.GetMessages())
}

func TestSendGroupWithoutJoiningIsAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	outsider := testutil.NewMockClient("mallory")
	bob := testutil.NewMockClient("bob")
	require.NoError(t, f.hub.Join("open", bob))

	n, err := f.router.SendGroup(context.Background(), outsider, "open", "hey")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSendGroupValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	alice := testutil.NewMockClient("alice")

	_, err := f.router.SendGroup(context.Background(), alice, "R1", "")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.router.SendGroup(context.Background(), alice, "", "hi")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSendGroupDurable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Options{PersistGroupMessages: true})
	group := f.store.Seed(domain.Conversation{
		ID: "G1", Name: "team", Members: []string{"alice", "bob"}, IsGroup: true, CreatedBy: "alice",
	})
	direct := f.direct("alice", "carol")

	alice := testutil.NewMockClient("alice")
	bob := testutil.NewMockClient("bob")
	mallory := testutil.NewMockClient("mallory")
	require.NoError(t, f.hub.Join(group.ID, alice))
	require.NoError(t, f.hub.Join(group.ID, bob))

	n, err := f.router.SendGroup(ctx, alice, group.ID, "stored")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, f.store.MessageCount(group.ID))
	gm := decode[domain.ReceiveGroupMessage](t, bob.Events(domain.EvReceiveGroupMessage)[0])
	require.NotEmpty(t, gm.MessageID)

	_, err = f.router.SendGroup(ctx, mallory, group.ID, "let me in")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.router.SendGroup(ctx, alice, direct.ID, "not a group")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.router.SendGroup(ctx, alice, "ghost", "hi")
	require.ErrorIs(t, err, domain.ErrNotFound)

	f.store.SetFail(true)
	_, err = f.router.SendGroup(ctx, alice, group.ID, "lost")
	require.ErrorIs(t, err, domain.ErrStore)
	require.Len(t, bob.Events(domain.EvReceiveGroupMessage), 1)
}
