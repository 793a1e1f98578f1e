package agenttransport

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SessionStore is the AT process's single shared structure: a map from
// session-id to live AgentSession. Its key space is write-exclusive to
// connect/disconnect; no other code reaches into it, and no session is ever
// touched from two call sites at once, so a single RWMutex over the map
// (not the sessions themselves) is sufficient.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*AgentSession
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*AgentSession)}
}

// put registers an already-constructed session under its id.
func (s *SessionStore) put(sess *AgentSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Get returns the session for id, or nil if absent.
func (s *SessionStore) Get(id string) *AgentSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Len reports the number of live sessions, used by tests and the operator
// status subcommand.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// remove deletes id from the store. A no-op if absent.
func (s *SessionStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// newSessionID generates a fresh, opaque session identifier.
func newSessionID() string {
	return uuid.New().String()
}

// errUnknownSessionf formats ErrUnknownSession with the offending id.
func errUnknownSessionf(id string) error {
	return fmt.Errorf("%w: %s", ErrUnknownSession, id)
}
