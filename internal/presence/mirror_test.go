package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisMirror(client, "chat", time.Minute), mr
}

func TestRedisMirrorOnlineLookupOffline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, mr := newMirror(t)

	req.NoError(m.Online(ctx, "alice", "sock-1"))
	req.True(mr.Exists("chat:presence:alice"))
	req.Equal(time.Minute, mr.TTL("chat:presence:alice"))

	socketID, ok, err := m.Lookup(ctx, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("sock-1", socketID)

	req.NoError(m.Offline(ctx, "alice", "sock-1"))
	_, ok, err = m.Lookup(ctx, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestRedisMirrorStaleOfflineKeepsNewerSocket(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, _ := newMirror(t)

	req.NoError(m.Online(ctx, "alice", "sock-1"))
	req.NoError(m.Online(ctx, "alice", "sock-2"))
	req.NoError(m.Offline(ctx, "alice", "sock-1"))

	socketID, ok, err := m.Lookup(ctx, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("sock-2", socketID)
}

func TestRedisMirrorExpires(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, mr := newMirror(t)

	req.NoError(m.Online(ctx, "alice", "sock-1"))
	mr.FastForward(2 * time.Minute)

	_, ok, err := m.Lookup(ctx, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestRedisMirrorStaleRefreshKeepsNewerSocket(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, mr := newMirror(t)

	req.NoError(m.Online(ctx, "alice", "sock-old"))
	req.NoError(m.Online(ctx, "alice", "sock-new"))
	req.NoError(m.Refresh(ctx, "alice", "sock-old"))

	socketID, ok, err := m.Lookup(ctx, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("sock-new", socketID)

	req.NoError(m.Offline(ctx, "alice", "sock-new"))
	req.False(mr.Exists("chat:presence:alice"))
}

func TestRedisMirrorRefreshExtendsOwnEntry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m, mr := newMirror(t)

	req.NoError(m.Online(ctx, "alice", "sock-1"))
	mr.FastForward(40 * time.Second)
	req.NoError(m.Refresh(ctx, "alice", "sock-1"))
	req.Equal(time.Minute, mr.TTL("chat:presence:alice"))

	mr.FastForward(2 * time.Minute)
	req.NoError(m.Refresh(ctx, "alice", "sock-1"))
	socketID, ok, err := m.Lookup(ctx, "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal("sock-1", socketID)
}
