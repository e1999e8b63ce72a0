// Package session serves one authenticated websocket connection.
//
// A session moves Connecting → Authenticated → Active → Closed. It is
// registered in presence only once Active, and Close always deregisters it
// and drops its room memberships, whatever work is still in flight.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/auth"
	"github.com/devaloi/socialchat/internal/domain"
	"github.com/devaloi/socialchat/internal/hub"
	"github.com/devaloi/socialchat/internal/presence"
	"github.com/devaloi/socialchat/internal/router"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Bound on presence mirror round trips.
	mirrorTimeout = 2 * time.Second
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Deps are the process-wide collaborators shared by every session.
type Deps struct {
	Verifier   auth.Verifier
	Presence   *presence.Registry
	Mirror     presence.Mirror
	Hub        *hub.Hub
	Router     *router.Router
	Log        *zap.Logger
	SendBuffer int
	// Tracker, when set, holds every active session so shutdown can close
	// them. Optional.
	Tracker *Tracker
}

// Session is one realtime connection.
type Session struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	deps   *Deps
	log    *zap.Logger

	state atomic.Int32
	// mu orders room joins against Close so a join can never land after
	// the session has left all its rooms.
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session in the Connecting state.
func New(conn *websocket.Conn, deps *Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, deps.SendBuffer),
		deps:   deps,
		log:    deps.Log.With(zap.String("socket_id", id)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the socket id.
func (s *Session) ID() string { return s.id }

// UserID returns the authenticated user, empty before authentication.
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start authenticates token and, on success, activates the session and
// starts its pumps. On failure an error event is written, the connection is
// closed and the session never reaches presence.
func (s *Session) Start(token string) error {
	userID, err := s.deps.Verifier.Verify(token)
	if err != nil {
		s.reject(err)
		return err
	}
	s.userID = userID
	s.log = s.log.With(zap.String("user_id", userID))
	s.state.Store(int32(StateAuthenticated))

	s.activate()
	go s.WritePump()
	go s.ReadPump()
	return nil
}

func (s *Session) activate() {
	s.deps.Presence.Register(s.userID, s)
	s.deps.Tracker.add(s)
	s.mirrorOnline()
	s.state.Store(int32(StateActive))
	s.emit(domain.EvConnected, domain.Connected{SocketID: s.id, UserID: s.userID})
	s.log.Info("session active")
}

// reject reports an authentication failure and closes the connection.
// Only called before the pumps start, so writing directly is safe.
func (s *Session) reject(err error) {
	s.log.Info("session rejected", zap.Error(err))
	if frame, encErr := domain.Encode(domain.EvError, domain.Reason(err)); encErr == nil {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.TextMessage, frame)
	}
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		time.Now().Add(writeWait))
	s.Close()
}

// Close tears the session down. It is idempotent and never waits for
// in-flight event handlers; their context is cancelled instead.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasActive := s.State() == StateActive
		s.state.Store(int32(StateClosed))
		s.mu.Unlock()
		s.cancel()
		close(s.done)

		if wasActive {
			s.deps.Presence.Deregister(s.userID, s)
			s.deps.Tracker.remove(s)
			s.mirrorOffline()
			if n := s.deps.Hub.LeaveAll(s); n > 0 {
				s.log.Debug("left rooms on close", zap.Int("rooms", n))
			}
			s.log.Info("session closed")
		}
		s.conn.Close()
	})
}

// Send queues a frame for the peer. Frames for a closed session are
// dropped, as are frames that overflow the send buffer.
func (s *Session) Send(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- data:
	default:
		s.log.Warn("send buffer full, dropping message")
	}
}

func (s *Session) emit(event string, data any) {
	frame, err := domain.Encode(event, data)
	if err != nil {
		s.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	s.Send(frame)
}

func (s *Session) sendError(err error) {
	s.emit(domain.EvError, domain.Reason(err))
}

// ReadPump reads frames from the connection and dispatches them until the
// connection fails, then closes the session.
func (s *Session) ReadPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.mirrorRefresh()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("read error", zap.Error(err))
			}
			return
		}
		s.handleFrame(data)
	}
}

// WritePump writes queued frames and keepalive pings to the connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (s *Session) mirrorOnline() {
	ctx, cancel := context.WithTimeout(s.ctx, mirrorTimeout)
	defer cancel()
	if err := s.deps.Mirror.Online(ctx, s.userID, s.id); err != nil {
		s.log.Warn("presence mirror online", zap.Error(err))
	}
}

// mirrorRefresh renews the mirror entry on heartbeat, but only while this
// session is still the user's registered connection.
func (s *Session) mirrorRefresh() {
	if h, ok := s.deps.Presence.Lookup(s.userID); !ok || h.ID() != s.id {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, mirrorTimeout)
	defer cancel()
	if err := s.deps.Mirror.Refresh(ctx, s.userID, s.id); err != nil {
		s.log.Warn("presence mirror refresh", zap.Error(err))
	}
}

func (s *Session) mirrorOffline() {
	// s.ctx is already cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.deps.Mirror.Offline(ctx, s.userID, s.id); err != nil {
		s.log.Warn("presence mirror offline", zap.Error(err))
	}
}
