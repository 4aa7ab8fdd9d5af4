package gameserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/userdir"
	"github.com/lower-elements/example-web-game/internal/world"
)

// Session binds one live websocket connection to one authenticated account
// and its player entity. Outbound frames go through a buffered per-session
// queue drained by an independent write pump, so one slow connection never
// blocks delivery to the others.
type Session struct {
	ID      uint64
	Account *userdir.Account

	conn *websocket.Conn
	log  *zap.Logger

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	playerMu sync.Mutex
	player   *world.Entity

	lastSeen atomic.Int64 // unix nanos of the last inbound frame or pong
	lastPing atomic.Int64
}

// NewSession wraps an authenticated connection. conn may be nil in tests;
// frames then pile up in the queue for inspection via Frames.
func NewSession(id uint64, acc *userdir.Account, conn *websocket.Conn, log *zap.Logger, queueSize int) *Session {
	s := &Session{
		ID:      id,
		Account: acc,
		conn:    conn,
		log:     log,
		send:    make(chan []byte, queueSize),
		done:    make(chan struct{}),
	}
	s.Touch()
	return s
}

func (s *Session) Username() string { return s.Account.Username }

// Player returns the session's avatar, nil before spawn or after teardown.
func (s *Session) Player() *world.Entity {
	s.playerMu.Lock()
	defer s.playerMu.Unlock()
	return s.player
}

func (s *Session) SetPlayer(p *world.Entity) {
	s.playerMu.Lock()
	defer s.playerMu.Unlock()
	s.player = p
}

// SendEvent implements world.EventSender: it serializes the envelope and
// enqueues it in FIFO order. A full queue drops the frame rather than block
// the world.
func (s *Session) SendEvent(event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		s.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	s.SendRaw(frame)
}

// SendRaw enqueues an already-encoded frame.
func (s *Session) SendRaw(frame []byte) {
	select {
	case <-s.done:
	case s.send <- frame:
	default:
		s.log.Warn("outbound queue full, dropping frame",
			zap.Uint64("session", s.ID), zap.String("user", s.Account.Username))
	}
}

// Frames exposes the outbound queue. The write pump is its consumer; tests
// drain it directly when no connection is attached.
func (s *Session) Frames() <-chan []byte {
	return s.send
}

// Touch records inbound activity for the keepalive loop.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// SilentFor returns how long the session has gone without inbound activity.
func (s *Session) SilentFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// ShouldPing rate-limits pings to one per second no matter how often the
// keepalive loop fires.
func (s *Session) ShouldPing(now time.Time) bool {
	return now.Sub(time.Unix(0, s.lastPing.Load())) >= time.Second
}

// Ping sends a websocket ping control frame.
func (s *Session) Ping(now time.Time, writeTimeout time.Duration) error {
	s.lastPing.Store(now.UnixNano())
	if s.conn == nil {
		return nil
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, now.Add(writeTimeout))
}

// Close shuts the session down exactly once: the write pump stops and the
// transport closes. Safe from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// writePump drains the outbound queue onto the wire in order.
func (s *Session) writePump(writeTimeout time.Duration) {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				s.Close()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("session write failed",
					zap.Uint64("session", s.ID), zap.Error(err))
				s.Close()
				return
			}
		}
	}
}
