package hub

import (
	"sort"

	"github.com/samber/lo"
)

// Member is the interface that the hub expects from a live connection.
type Member interface {
	ID() string
	UserID() string
	Send(data []byte)
}

// room is the set of connections joined to one broadcast room.
// It is guarded by Hub.mu.
type room struct {
	name    string
	members map[string]Member
}

func newRoom(name string) *room {
	return &room{name: name, members: make(map[string]Member)}
}

func (r *room) add(m Member) {
	r.members[m.ID()] = m
}

func (r *room) remove(m Member) bool {
	if _, ok := r.members[m.ID()]; !ok {
		return false
	}
	delete(r.members, m.ID())
	return true
}

func (r *room) empty() bool {
	return len(r.members) == 0
}

// snapshot copies the member set so dispatch can run without the lock.
func (r *room) snapshot() []Member {
	return lo.Values(r.members)
}

// users returns the distinct user ids present in the room, sorted.
func (r *room) users() []string {
	users := lo.Uniq(lo.MapToSlice(r.members, func(_ string, m Member) string { return m.UserID() }))
	sort.Strings(users)
	return users
}
