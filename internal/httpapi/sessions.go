package httpapi

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"remix/internal/pca"
)

// ErrSessionNotFound reports a mix request against an expired or unknown
// session.
var ErrSessionNotFound = errors.New("session not found")

// session holds one decomposition result between process and mix calls.
type session struct {
	id       string
	result   *pca.Result
	lastUsed time.Time
}

// sessionStore keeps live sessions in memory. Touching a session on every
// lookup keeps active editing sessions alive past the TTL.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add stores a result under a fresh session ID.
func (s *sessionStore) Add(result *pca.Result) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &session{id: id, result: result, lastUsed: s.now()}
	return id
}

// Get returns the result for id, refreshing its expiry.
func (s *sessionStore) Get(id string) (*pca.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.ttl > 0 && s.now().Sub(sess.lastUsed) > s.ttl {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	sess.lastUsed = s.now()
	return sess.result, nil
}

// Len reports the number of live sessions.
func (s *sessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweep drops sessions idle for longer than the TTL and reports how many
// were removed.
func (s *sessionStore) sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
