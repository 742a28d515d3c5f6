package store

import (
	"errors"

	"chatvault/pkg/domain"
)

// Sentinel errors shared by all Store implementations.
var (
	ErrUserExists  = errors.New("user already exists")
	ErrGroupExists = errors.New("group already exists")
	ErrNotFound    = errors.New("record not found")
)

// Store defines persistence operations for users, groups, and the message
// ledger. Implementations own their internal synchronization; each operation
// is an atomic read-modify-write.
type Store interface {
	// users; CreateUser returns ErrUserExists on a duplicate username,
	// UpdateUser and DeleteUser return ErrNotFound when the user is absent.
	CreateUser(domain.User) error
	GetUser(username string) (domain.User, bool, error)
	UpdateUser(domain.User) error
	DeleteUser(username string) error

	// groups; CreateGroup returns ErrGroupExists on a duplicate name,
	// DeleteGroup returns ErrNotFound when absent and cascades messages.
	CreateGroup(domain.Group) error
	HasGroup(name string) (bool, error)
	ListGroups() ([]string, error)
	DeleteGroup(name string) error

	// messages
	AppendMessage(domain.Message) error
	ListMessages(group string) ([]domain.Message, error)
}

// SessionStore persists opaque bearer tokens. A user holds at most one
// active token; issuing a new one silently revokes the previous.
type SessionStore interface {
	NewSession(username string) (string, error)
	GetUsernameByToken(token string) (string, bool, error)
	DeleteSession(token string) error
	RevokeUser(username string) error
}
