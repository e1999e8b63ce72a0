// Package presence tracks which users are connected to this process.
//
// The model is single-handle-per-user: a second connection for the same
// user replaces the first, and only the newest connection receives direct
// messages. Multi-device fan-out is not supported.
package presence

import (
	"sync"

	"go.uber.org/zap"
)

// Handle is a live connection that can receive frames.
type Handle interface {
	ID() string
	Send(data []byte)
}

// Registry maps user ids to their active connection handle.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handle
	log     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Handle),
		log:     log,
	}
}

// Register records h as the active handle for userID, replacing any previous one.
func (r *Registry) Register(userID string, h Handle) {
	r.mu.Lock()
	prev, replaced := r.entries[userID]
	r.entries[userID] = h
	r.mu.Unlock()

	if replaced && prev.ID() != h.ID() {
		r.log.Info("presence replaced",
			zap.String("user_id", userID),
			zap.String("old_socket", prev.ID()),
			zap.String("new_socket", h.ID()))
	}
}

// Lookup returns the active handle for userID.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[userID]
	return h, ok
}

// Deregister removes userID only while it still maps to h, so a stale
// disconnect cannot erase a newer connection. It reports whether an entry
// was removed.
func (r *Registry) Deregister(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[userID]
	if !ok || cur.ID() != h.ID() {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Shutdown drops every entry. Called once the HTTP server has drained.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = make(map[string]Handle)
	r.mu.Unlock()
	r.log.Info("presence registry shut down", zap.Int("dropped", n))
}
