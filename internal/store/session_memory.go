package store

import (
	"sync"

	"github.com/google/uuid"
)

// MemorySessionStore keeps token bindings in-process. Same single-session
// semantics as the Redis store.
type MemorySessionStore struct {
	mu      sync.RWMutex
	byToken map[string]string // token -> username
	byUser  map[string]string // username -> token
}

// NewMemorySessionStore initializes an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byToken: make(map[string]string),
		byUser:  make(map[string]string),
	}
}

// NewSession issues a fresh token, revoking the user's previous one.
func (s *MemorySessionStore) NewSession(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byUser[username]; ok {
		delete(s.byToken, old)
	}
	token := uuid.NewString()
	s.byToken[token] = username
	s.byUser[username] = token
	return token, nil
}

// GetUsernameByToken resolves a token to its bound username.
func (s *MemorySessionStore) GetUsernameByToken(token string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.byToken[token]
	return username, ok, nil
}

// DeleteSession removes a token and its reverse mapping.
func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if username, ok := s.byToken[token]; ok {
		delete(s.byToken, token)
		delete(s.byUser, username)
	}
	return nil
}

// RevokeUser drops the user's active token, if any.
func (s *MemorySessionStore) RevokeUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.byUser[username]; ok {
		delete(s.byToken, token)
		delete(s.byUser, username)
	}
	return nil
}
