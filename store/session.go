package store

import (
	"strings"
	"sync"
)

// Exchange is one user message and its paired assistant reply.
type Exchange struct {
	User      string
	Assistant string
}

// Session is a single conversation thread. History is a bounded ring:
// appending past the limit discards the oldest exchange. Sessions live in
// memory only and disappear on process restart.
type Session struct {
	ID string

	mu         sync.Mutex
	maxHistory int
	exchanges  []Exchange
}

// AddExchange appends one exchange and trims to the configured bound. This
// is the only mutation point for session history.
func (s *Session) AddExchange(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, Exchange{User: user, Assistant: assistant})
	if s.maxHistory > 0 && len(s.exchanges) > s.maxHistory {
		s.exchanges = s.exchanges[len(s.exchanges)-s.maxHistory:]
	}
}

// History renders the retained exchanges for provider consumption, oldest
// first: each pair as "User: {u}\nAssistant: {a}", pairs joined by
// newlines. Empty history renders as "".
func (s *Session) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.exchanges))
	for _, e := range s.exchanges {
		parts = append(parts, "User: "+e.User+"\nAssistant: "+e.Assistant)
	}
	return strings.Join(parts, "\n")
}
