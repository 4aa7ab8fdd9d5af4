package gameserver

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/config"
	"github.com/lower-elements/example-web-game/internal/protocol"
	"github.com/lower-elements/example-web-game/internal/userdir"
	"github.com/lower-elements/example-web-game/internal/world"
)

// Server owns the set of live authenticated sessions: it accepts websocket
// connections, authenticates them against the user directory, spawns their
// players into the default map, and runs the keepalive and world-tick loops.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	users    userdir.Directory
	world    *world.Map
	spawn    protocol.Vec3
	store    *SessionStore
	registry *protocol.Registry

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// OnSilent is the hook invoked when a session stays silent past the
	// threshold, right after it has been pinged. Installing a disconnect
	// policy here is up to the operator; the default is ping-only.
	OnSilent func(*Session)
}

func New(cfg *config.Config, log *zap.Logger, users userdir.Directory, m *world.Map, spawn protocol.Vec3, registry *protocol.Registry) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		users:    users,
		world:    m,
		spawn:    spawn,
		store:    NewSessionStore(),
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Store exposes the live session set (handlers use it for server-wide
// broadcast and the online roster).
func (s *Server) Store() *SessionStore { return s.store }

// World returns the authoritative default map.
func (s *Server) World() *world.Map { return s.world }

// HandleWS upgrades an HTTP request and services the connection until it
// closes. Mounted on the HTTP mux by the caller.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.serveConn(conn, r)
}

// credentials pulls the handshake cookie pair. Consumed exactly once; no
// re-authentication happens mid-session.
func credentials(r *http.Request) (email, password string, ok bool) {
	emailCookie, err := r.Cookie("email")
	if err != nil {
		return "", "", false
	}
	passwordCookie, err := r.Cookie("password")
	if err != nil {
		return "", "", false
	}
	return emailCookie.Value, passwordCookie.Value, true
}

func (s *Server) serveConn(conn *websocket.Conn, r *http.Request) {
	email, password, ok := credentials(r)
	if !ok {
		s.log.Info("connection without credentials", zap.String("remote", r.RemoteAddr))
		conn.Close()
		return
	}

	// The directory lookup may block; no world or session state exists yet,
	// so a failure aborts with no side effects.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Network.AuthTimeout.Duration)
	acc, err := s.users.FindByEmailAndPassword(ctx, email, password)
	cancel()
	if err != nil {
		s.log.Error("directory lookup failed", zap.Error(err))
		conn.Close()
		return
	}
	if acc == nil {
		s.log.Info("authentication rejected", zap.String("remote", r.RemoteAddr))
		conn.Close()
		return
	}

	sess := NewSession(s.nextID.Add(1), acc, conn, s.log, s.cfg.Network.SendQueueSize)
	conn.SetReadLimit(s.cfg.Network.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})
	go sess.writePump(s.cfg.Network.WriteTimeout.Duration)

	s.admit(sess)
	s.log.Info("session connected",
		zap.Uint64("session", sess.ID), zap.String("user", acc.Username))

	s.readLoop(sess)
	s.dropSession(sess)
}

// admit runs the join sequence: the session enters the live set, receives the
// map and its own spawn state, and everyone else hears about it. A second
// login for the same account supersedes the first: the old session is torn
// down before the new one enters, so the shared player identity never
// collides in the map.
func (s *Server) admit(sess *Session) {
	if prev := s.store.FindByUsername(sess.Username()); prev != nil && prev.ID != sess.ID {
		s.log.Info("superseding existing session",
			zap.Uint64("old_session", prev.ID), zap.String("user", sess.Username()))
		s.dropSession(prev)
	}

	s.store.Add(sess)

	sess.SendEvent(protocol.EventLoadMap, protocol.LoadMapData{
		Map:      s.world.Dump(),
		Position: s.spawn,
		PlayerID: world.PlayerID(sess.Username()),
	})

	// SpawnPlayer broadcasts the spawn to everyone already present and then
	// sends the full roster (self included) to the joiner alone.
	player := s.world.SpawnPlayer(sess.Username(), sess, s.spawn.X, s.spawn.Y, s.spawn.Z)
	sess.SetPlayer(player)

	s.store.Broadcast(protocol.EventSpeak, protocol.SpeakData{
		Text:   sess.Username() + " has joined the game.",
		Buffer: "Connections",
		Sound:  "ui/connect.ogg",
	}, sess.ID)
}

// readLoop services inbound frames until the transport dies. Malformed JSON
// and unknown events are ignored; binary frames are logged and dropped.
func (s *Server) readLoop(sess *Session) {
	for {
		msgType, frame, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		sess.Touch()
		switch msgType {
		case websocket.TextMessage:
			env, err := protocol.Decode(frame)
			if err != nil {
				s.log.Debug("malformed frame ignored",
					zap.Uint64("session", sess.ID), zap.Error(err))
				continue
			}
			s.registry.Dispatch(env.Event, sess, env.Data)
		case websocket.BinaryMessage:
			s.log.Debug("binary frame ignored",
				zap.Uint64("session", sess.ID), zap.Int("bytes", len(frame)))
		}
	}
}

// dropSession unwinds a session deterministically: leave the live set,
// destroy the player (broadcasting removal to the map), persist the account
// best-effort, then announce the departure. Persistence failure never blocks
// teardown. Whoever removes the session from the store runs the teardown;
// later callers (a superseded session's own read loop, for instance) find it
// gone and return.
func (s *Server) dropSession(sess *Session) {
	sess.Close()
	if !s.store.Remove(sess.ID) {
		return
	}

	if p := sess.Player(); p != nil {
		p.Destroy()
		sess.SetPlayer(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Network.AuthTimeout.Duration)
	if ok, err := s.users.ReplaceByEmail(ctx, sess.Account.Email, sess.Account); err != nil {
		s.log.Warn("account save failed on disconnect",
			zap.String("user", sess.Username()), zap.Error(err))
	} else if !ok {
		s.log.Warn("account vanished before disconnect save",
			zap.String("user", sess.Username()))
	}
	cancel()

	s.store.Broadcast(protocol.EventSpeak, protocol.SpeakData{
		Text:   sess.Username() + " has left the game.",
		Buffer: "Connections",
		Sound:  "ui/disconnect.ogg",
	})

	s.log.Info("session disconnected",
		zap.Uint64("session", sess.ID), zap.String("user", sess.Username()))
}

// RunKeepalive pings sessions that have gone silent past the threshold. It
// returns when ctx is cancelled.
func (s *Server) RunKeepalive(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Network.KeepaliveInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			s.store.ForEach(func(sess *Session) {
				if sess.SilentFor(now) < s.cfg.Network.SilenceThreshold.Duration || !sess.ShouldPing(now) {
					return
				}
				if err := sess.Ping(now, s.cfg.Network.WriteTimeout.Duration); err != nil {
					s.log.Debug("keepalive ping failed",
						zap.Uint64("session", sess.ID), zap.Error(err))
				}
				if s.OnSilent != nil {
					s.OnSilent(sess)
				}
			})
		}
	}
}

// RunTicker advances the world on a fixed period until ctx is cancelled.
func (s *Server) RunTicker(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.World.TickRate.Duration)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.world.Update(now.Sub(last))
			last = now
		}
	}
}
