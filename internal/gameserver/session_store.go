package gameserver

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/lower-elements/example-web-game/internal/userdir"
)

// SessionStore holds all active sessions. Unlike the per-map player set,
// sessions are touched from every connection's read goroutine and from the
// keepalive loop, so the store carries its own lock.
type SessionStore struct {
	mu       deadlock.RWMutex
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (ss *SessionStore) Add(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID] = s
}

// Remove reports whether the session was still in the store, so concurrent
// teardown paths can tell which one of them actually removed it.
func (ss *SessionStore) Remove(id uint64) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.sessions[id]; !ok {
		return false
	}
	delete(ss.sessions, id)
	return true
}

// FindByUsername returns the live session for an account, matched on the
// normalized username, or nil.
func (ss *SessionStore) FindByUsername(username string) *Session {
	normalized := userdir.Normalize(username)
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	for _, s := range ss.sessions {
		if userdir.Normalize(s.Username()) == normalized {
			return s
		}
	}
	return nil
}

func (ss *SessionStore) Get(id uint64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[id]
}

func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// ForEach visits a stable snapshot of the membership, so callbacks may close
// or remove sessions mid-iteration.
func (ss *SessionStore) ForEach(fn func(*Session)) {
	ss.mu.RLock()
	snapshot := make([]*Session, 0, len(ss.sessions))
	for _, s := range ss.sessions {
		snapshot = append(snapshot, s)
	}
	ss.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// Broadcast sends an event to every session except the excluded IDs.
func (ss *SessionStore) Broadcast(event string, data any, excluding ...uint64) {
	ss.ForEach(func(s *Session) {
		for _, id := range excluding {
			if s.ID == id {
				return
			}
		}
		s.SendEvent(event, data)
	})
}
