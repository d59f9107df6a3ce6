// Package auth holds the authenticated session shared by the REST client and
// the watchers.
package auth

import (
	"errors"
	"sync"

	"ipal-monitor/internal/models"
)

var (
	// ErrSessionExpired marks an expired or rejected token. It is never
	// retried and never masked by fallback data.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrNotAuthenticated is returned when no session has been established.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLoggedOut is the revoke reason of an explicit logout.
	ErrLoggedOut = errors.New("logged out")
)

// IsSessionExpired reports whether err carries ErrSessionExpired.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// Session is the current authentication state. It is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      *models.User
	revoked   error
	listeners map[int]func(reason error)
	nextID    int
}

// NewSession creates a session; an empty token means not yet authenticated.
func NewSession(token string, user *models.User) *Session {
	return &Session{
		token:     token,
		user:      user,
		listeners: make(map[int]func(error)),
	}
}

// IsAuthenticated reports a non-empty, non-revoked token.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.revoked == nil
}

// Token returns the bearer token, or "" when not authenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.revoked != nil {
		return ""
	}
	return s.token
}

// User returns the logged in user, if known.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Err returns why the session is not usable, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.revoked != nil:
		return s.revoked
	case s.token == "":
		return ErrNotAuthenticated
	}
	return nil
}

// Login installs a fresh token and clears a previous revocation.
func (s *Session) Login(token string, user *models.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.revoked = nil
	s.mu.Unlock()
}

// Revoke ends the session and notifies listeners once. Listeners run on the
// caller's goroutine and must not block.
func (s *Session) Revoke(reason error) {
	if reason == nil {
		reason = ErrLoggedOut
	}

	s.mu.Lock()
	if s.revoked != nil {
		s.mu.Unlock()
		return
	}
	s.revoked = reason
	s.token = ""
	listeners := make([]func(error), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
}

// OnRevoke registers fn and returns a function removing it.
func (s *Session) OnRevoke(fn func(reason error)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
