// Package store holds per-session conversation state. Everything here is
// in-memory: session history is bounded, shared between requests, and
// destroyed by process restart.
package store

import (
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// DefaultMaxHistory is the number of exchanges a session retains.
const DefaultMaxHistory = 2

// Store owns all sessions.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
}

// New creates a session store retaining at most maxHistory exchanges per
// session.
func New(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
	}
}

// Create allocates a new empty session and returns its ID.
func (s *Store) Create() string {
	id := shortuuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &Session{ID: id, maxHistory: s.maxHistory}
	return id
}

// GetOrCreate returns the session with the given ID, creating it on first
// use so callers may bring their own identifiers.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{ID: id, maxHistory: s.maxHistory}
	s.sessions[id] = sess
	return sess
}

// History returns the formatted history for the given session, or "" when
// the session is unknown or empty.
func (s *Store) History(id string) string {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ""
	}
	return sess.History()
}

// AddExchange appends one user/assistant exchange to the session, creating
// the session if needed.
func (s *Store) AddExchange(id, user, assistant string) {
	s.GetOrCreate(id).AddExchange(user, assistant)
}

// Clear drops a session and its history.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
