package store

import (
	"sync"

	"chatvault/pkg/domain"
)

// MemoryStore keeps all state in-process. Used in tests and as a
// zero-dependency fallback when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	groups   map[string]domain.Group
	messages map[string][]domain.Message
	nextSeq  uint64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		groups:   make(map[string]domain.Group),
		messages: make(map[string][]domain.Message),
	}
}

// CreateUser inserts a new user, rejecting duplicates.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return ErrUserExists
	}
	m.users[u.Username] = u
	return nil
}

// GetUser returns a user by username.
func (m *MemoryStore) GetUser(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	return u, ok, nil
}

// UpdateUser rewrites an existing user record.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; !exists {
		return ErrNotFound
	}
	m.users[u.Username] = u
	return nil
}

// DeleteUser removes a user record.
func (m *MemoryStore) DeleteUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; !exists {
		return ErrNotFound
	}
	delete(m.users, username)
	return nil
}

// CreateGroup inserts a new group, rejecting duplicates.
func (m *MemoryStore) CreateGroup(g domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[g.Name]; exists {
		return ErrGroupExists
	}
	m.groups[g.Name] = g
	return nil
}

// HasGroup checks group existence.
func (m *MemoryStore) HasGroup(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.groups[name]
	return ok, nil
}

// ListGroups returns all group names.
func (m *MemoryStore) ListGroups() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	return names, nil
}

// DeleteGroup removes a group and its messages.
func (m *MemoryStore) DeleteGroup(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[name]; !exists {
		return ErrNotFound
	}
	delete(m.groups, name)
	delete(m.messages, name)
	return nil
}

// AppendMessage records a message in append order.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	msg.Seq = m.nextSeq
	m.messages[msg.Group] = append(m.messages[msg.Group], msg)
	return nil
}

// ListMessages returns a group's messages in append order.
func (m *MemoryStore) ListMessages(group string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[group]
	res := make([]domain.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

// MessageCount reports the total number of stored messages across groups.
func (m *MemoryStore) MessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, msgs := range m.messages {
		total += len(msgs)
	}
	return total
}
