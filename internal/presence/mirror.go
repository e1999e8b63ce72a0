package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror publishes presence outside the process so other instances can
// answer presence queries for users they do not hold.
type Mirror interface {
	Online(ctx context.Context, userID, socketID string) error
	Refresh(ctx context.Context, userID, socketID string) error
	Offline(ctx context.Context, userID, socketID string) error
	Lookup(ctx context.Context, userID string) (string, bool, error)
}

// NopMirror is used when no Redis is configured.
type NopMirror struct{}

func (NopMirror) Online(context.Context, string, string) error  { return nil }
func (NopMirror) Refresh(context.Context, string, string) error { return nil }
func (NopMirror) Offline(context.Context, string, string) error { return nil }
func (NopMirror) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}

// compareAndDelete removes KEYS[1] only if it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshIfOwned renews KEYS[1] for ARGV[1] unless another socket has
// claimed it. An expired key is recreated.
var refreshIfOwned = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
	return redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
end
return 0
`)

// RedisMirror stores <prefix>:presence:<user> → socket id with a TTL.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror creates a mirror writing keys under prefix.
func NewRedisMirror(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}
}

func (m *RedisMirror) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, userID)
}

// Online marks userID as connected through socketID.
func (m *RedisMirror) Online(ctx context.Context, userID, socketID string) error {
	return m.client.Set(ctx, m.key(userID), socketID, m.ttl).Err()
}

// Refresh extends the entry on heartbeat. It never overwrites an entry
// naming a different socket, so an older connection still alive for the
// same user cannot take the key back from a newer one.
func (m *RedisMirror) Refresh(ctx context.Context, userID, socketID string) error {
	err := refreshIfOwned.Run(ctx, m.client, []string{m.key(userID)}, socketID, m.ttl.Milliseconds()).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// Offline clears the entry if it still names socketID.
func (m *RedisMirror) Offline(ctx context.Context, userID, socketID string) error {
	return compareAndDelete.Run(ctx, m.client, []string{m.key(userID)}, socketID).Err()
}

// Lookup returns the socket id userID is connected through, if any.
func (m *RedisMirror) Lookup(ctx context.Context, userID string) (string, bool, error) {
	socketID, err := m.client.Get(ctx, m.key(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return socketID, true, nil
}
