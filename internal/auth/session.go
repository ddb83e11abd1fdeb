package auth

import (
	"sync"
	"time"

	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID      string
	User    User
	Token   *oauth2.Token
	Upload  *sheet.Dataset
	Created time.Time
	Expires time.Time
}

// Sessions is an in-memory session store.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewSessions creates a store whose sessions expire after ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for u.
func (s *Sessions) Create(u User, token *oauth2.Token) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:      uuid.NewString(),
		User:    u,
		Token:   token,
		Created: now,
		Expires: now.Add(s.ttl),
	}
	s.sessions[sess.ID] = sess
	s.evictLocked(now)
	return sess
}

// Get returns the live session for id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(sess.Expires) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

// SetUpload attaches an uploaded data set to the session.
func (s *Sessions) SetUpload(id string, ds *sheet.Dataset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Upload = ds
	return true
}

// Delete ends the session.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of stored sessions, expired ones included.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) evictLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.Expires) {
			delete(s.sessions, id)
		}
	}
}
