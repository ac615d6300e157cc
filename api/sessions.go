package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ceplan/itpei/reconcile"
)

// DefaultSessionTTL is how long an untouched form session survives.
const DefaultSessionTTL = 8 * time.Hour

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

type session struct {
	mu    sync.Mutex
	state reconcile.FormState
	seen  time.Time // guarded by Sessions.mu
}

// Sessions holds the FormState of every open form. Each session is used by
// one request at a time.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*session
	ttl  time.Duration
	now  func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		byID: make(map[string]*session),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create registers st under a fresh id. Expired sessions are dropped first.
func (s *Sessions) Create(st reconcile.FormState) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	id := uuid.NewString()
	s.byID[id] = &session{state: st, seen: now}
	return id
}

// With runs fn against the session state while holding the session lock.
// fn mutates the state in place.
func (s *Sessions) With(id string, fn func(st *reconcile.FormState) error) error {
	s.mu.Lock()
	sess, ok := s.byID[id]
	if ok {
		now := s.now()
		if s.expired(sess, now) {
			delete(s.byID, id)
			ok = false
		} else {
			sess.seen = now
		}
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(&sess.state)
}

// Prune drops expired sessions and returns how many went.
func (s *Sessions) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

// Len counts open sessions, expired ones included until pruned.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Sessions) pruneLocked(now time.Time) int {
	n := 0
	for id, sess := range s.byID {
		if s.expired(sess, now) {
			delete(s.byID, id)
			n++
		}
	}
	return n
}

func (s *Sessions) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.seen) > s.ttl
}
