package session

import "sync"

// Tracker holds the active sessions of the process. Presence keeps only the
// newest connection per user, so it cannot be used to reach every socket at
// shutdown. A nil Tracker ignores every call.
type Tracker struct {
	mu   sync.Mutex
	live map[*Session]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{live: make(map[*Session]struct{})}
}

func (t *Tracker) add(s *Session) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.live[s] = struct{}{}
	t.mu.Unlock()
}

func (t *Tracker) remove(s *Session) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.live, s)
	t.mu.Unlock()
}

// Len returns the number of active sessions.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// CloseAll closes every active session and returns how many were closed.
func (t *Tracker) CloseAll() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	live := make([]*Session, 0, len(t.live))
	for s := range t.live {
		live = append(live, s)
	}
	t.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	return len(live)
}
