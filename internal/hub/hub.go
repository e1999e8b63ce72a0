// Package hub manages ephemeral broadcast rooms. Room membership is a live
// session action and is independent of persisted conversation membership:
// any connected session may join any room id.
package hub

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/domain"
)

// Hub tracks which connections have joined which rooms. Rooms are created on
// first join and deleted as soon as their last member leaves.
//
// Broadcast copies the member set under the read lock and dispatches after
// releasing it, so concurrent Join/Leave never race with delivery and a
// slow receiver cannot stall membership changes.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	joined   map[string]map[string]struct{} // member id -> room names
	maxRooms int
	log      *zap.Logger
}

// New creates a Hub that holds at most maxRooms live rooms.
func New(maxRooms int, log *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*room),
		joined:   make(map[string]map[string]struct{}),
		maxRooms: maxRooms,
		log:      log,
	}
}

// Join adds m to the named room, creating the room if needed.
func (h *Hub) Join(name string, m Member) error {
	if name == "" {
		return fmt.Errorf("%w: room id is required", domain.ErrValidation)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[name]
	if !ok {
		if len(h.rooms) >= h.maxRooms {
			return domain.ErrTooManyRooms
		}
		r = newRoom(name)
		h.rooms[name] = r
		h.log.Debug("room created", zap.String("room", name))
	}
	r.add(m)

	rooms, ok := h.joined[m.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[m.ID()] = rooms
	}
	rooms[name] = struct{}{}
	return nil
}

// Leave removes m from the named room. It reports whether m was a member.
func (h *Hub) Leave(name string, m Member) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(name, m)
}

// LeaveAll removes m from every room it joined and returns how many.
func (h *Hub) LeaveAll(m Member) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for name := range h.joined[m.ID()] {
		if h.leaveLocked(name, m) {
			n++
		}
	}
	delete(h.joined, m.ID())
	return n
}

func (h *Hub) leaveLocked(name string, m Member) bool {
	r, ok := h.rooms[name]
	if !ok || !r.remove(m) {
		return false
	}
	if rooms, ok := h.joined[m.ID()]; ok {
		delete(rooms, name)
		if len(rooms) == 0 {
			delete(h.joined, m.ID())
		}
	}
	if r.empty() {
		delete(h.rooms, name)
		h.log.Debug("room deleted", zap.String("room", name))
	}
	return true
}

// Broadcast delivers payload to every member of the room except exclude,
// which may be nil. It returns the number of deliveries.
func (h *Hub) Broadcast(name string, payload []byte, exclude Member) int {
	h.mu.RLock()
	r, ok := h.rooms[name]
	if !ok {
		h.mu.RUnlock()
		return 0
	}
	members := r.snapshot()
	h.mu.RUnlock()

	n := 0
	for _, m := range members {
		if exclude != nil && m.ID() == exclude.ID() {
			continue
		}
		m.Send(payload)
		n++
	}
	return n
}

// IsMember reports whether m has joined the named room.
func (h *Hub) IsMember(name string, m Member) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.joined[m.ID()][name]
	return ok
}

// ListRooms returns info about all active rooms, sorted by name.
func (h *Hub) ListRooms() []domain.Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]domain.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, domain.Room{Name: r.name, UserCount: len(r.users())})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

// RoomInfo returns details about a specific room, or nil if not found.
func (h *Hub) RoomInfo(name string) *domain.Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[name]
	if !ok {
		return nil
	}
	return &domain.Room{Name: r.name, UserCount: len(r.users())}
}

// Users returns the distinct users currently in the room.
func (h *Hub) Users(name string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[name]
	if !ok {
		return nil
	}
	return r.users()
}

// Shutdown drops all rooms.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = make(map[string]*room)
	h.joined = make(map[string]map[string]struct{})
}
