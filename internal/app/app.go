package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatvault/internal/cryptox"
	"chatvault/internal/storage"
	"chatvault/internal/store"
	"chatvault/pkg/auth"
	"chatvault/pkg/domain"
)

// Config wires storage, sessions, the message cipher, and avatar storage
// into the core application. Explicit instances win over connection
// settings, which lets tests inject in-memory implementations.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	Store    store.Store
	Sessions store.SessionStore
	Cipher   *cryptox.Cipher
	Avatars  storage.AvatarStore
}

// App is the core application service composing credential storage, the
// group registry, the message ledger, sessions, and the cipher.
type App struct {
	store    store.Store
	sessions store.SessionStore
	cipher   *cryptox.Cipher
	avatars  storage.AvatarStore
}

// New constructs the application. Without an explicit Store a database URL
// is required; without an explicit session store Redis is used when
// configured, an in-process store otherwise.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		if cfg.RedisAddr != "" {
			sessions = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			sessions = store.NewMemorySessionStore()
		}
	}

	cipher := cfg.Cipher
	if cipher == nil {
		var err error
		cipher, err = cryptox.New()
		if err != nil {
			return nil, fmt.Errorf("init cipher: %w", err)
		}
	}

	return &App{
		store:    dataStore,
		sessions: sessions,
		cipher:   cipher,
		avatars:  cfg.Avatars,
	}, nil
}

// Register creates a new account. Only a bcrypt hash of the password is
// ever stored.
func (a *App) Register(username, password, description, avatarRef string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password required")
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		Description:  description,
		AvatarRef:    avatarRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Login verifies credentials and issues a session token, silently
// revoking any previous token for the user.
func (a *App) Login(username, password string) (string, error) {
	user, ok, err := a.store.GetUser(username)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.Username)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ValidateToken resolves a bearer token to its bound username.
func (a *App) ValidateToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	username, ok, err := a.sessions.GetUsernameByToken(token)
	if err != nil || !ok {
		return "", false
	}
	return username, true
}

// Logout invalidates the presented token.
func (a *App) Logout(token string) error {
	if _, ok := a.ValidateToken(token); !ok {
		return ErrUnauthorized
	}
	return a.sessions.DeleteSession(token)
}

// Profile returns the public projection of a user, with the avatar
// reference resolved to a fetchable URL.
func (a *App) Profile(ctx context.Context, username string) (domain.Profile, error) {
	user, ok, err := a.store.GetUser(username)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrUserNotFound
	}
	return domain.Profile{
		Username:    user.Username,
		Description: user.Description,
		AvatarURL:   a.avatarURL(ctx, user.AvatarRef),
	}, nil
}

// SetAvatar stores an uploaded avatar for the token's user and returns
// its URL.
func (a *App) SetAvatar(ctx context.Context, token, filename string, r io.Reader, size int64, contentType string) (string, error) {
	username, ok := a.ValidateToken(token)
	if !ok {
		return "", ErrUnauthorized
	}
	if a.avatars == nil {
		return "", fmt.Errorf("avatar storage not configured")
	}
	user, found, err := a.store.GetUser(username)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return "", ErrUserNotFound
	}
	key := "avatar-" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	if err := a.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	old := user.AvatarRef
	user.AvatarRef = key
	if err := a.store.UpdateUser(user); err != nil {
		return "", fmt.Errorf("update user: %w", err)
	}
	if old != "" {
		_ = a.avatars.Delete(ctx, old)
	}
	return a.avatarURL(ctx, key), nil
}

// CreateGroup registers a new group name. A second create on the same
// name fails rather than being a no-op.
func (a *App) CreateGroup(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("group name required")
	}
	err := a.store.CreateGroup(domain.Group{Name: name, CreatedAt: time.Now().UTC()})
	if errors.Is(err, store.ErrGroupExists) {
		return ErrGroupExists
	}
	return err
}

// ListGroups returns all group names.
func (a *App) ListGroups() ([]string, error) {
	return a.store.ListGroups()
}

// DeleteGroup removes a group and all of its messages.
func (a *App) DeleteGroup(name string) error {
	err := a.store.DeleteGroup(name)
	if errors.Is(err, store.ErrNotFound) {
		return ErrGroupNotFound
	}
	return err
}

// SendMessage authenticates the sender, checks the target group, then
// encrypts and appends the message. Authorization happens before any
// write: a rejected send leaves the ledger untouched.
func (a *App) SendMessage(username, token, group, content string) error {
	bound, ok := a.ValidateToken(token)
	if !ok || bound != username {
		return ErrUnauthorized
	}
	exists, err := a.store.HasGroup(group)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return ErrGroupNotFound
	}
	envelope, err := a.cipher.Encrypt([]byte(content))
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}
	msg := domain.Message{
		Group:      group,
		Author:     username,
		Ciphertext: envelope,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ReadMessages returns a group's messages in append order, decrypted.
func (a *App) ReadMessages(ctx context.Context, group string) ([]domain.MessageView, error) {
	exists, err := a.store.HasGroup(group)
	if err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return nil, ErrGroupNotFound
	}
	msgs, err := a.store.ListMessages(group)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	avatarByAuthor := make(map[string]string)
	views := make([]domain.MessageView, 0, len(msgs))
	for _, msg := range msgs {
		plaintext, err := a.cipher.Decrypt(msg.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("message %d in %q: %w", msg.Seq, group, err)
		}
		avatarURL, cached := avatarByAuthor[msg.Author]
		if !cached {
			if user, found, err := a.store.GetUser(msg.Author); err == nil && found {
				avatarURL = a.avatarURL(ctx, user.AvatarRef)
			}
			avatarByAuthor[msg.Author] = avatarURL
		}
		views = append(views, domain.MessageView{
			Username:  msg.Author,
			Content:   string(plaintext),
			Timestamp: msg.CreatedAt,
			AvatarURL: avatarURL,
		})
	}
	return views, nil
}

// DeleteAccount removes the user and invalidates their session. The token
// is revoked before the record is deleted, so there is no window where a
// valid token points at a missing user.
func (a *App) DeleteAccount(ctx context.Context, username, token string) error {
	bound, ok := a.ValidateToken(token)
	if !ok || bound != username {
		return ErrUnauthorized
	}
	user, found, err := a.store.GetUser(username)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return ErrUserNotFound
	}
	if err := a.sessions.RevokeUser(username); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := a.store.DeleteUser(username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if a.avatars != nil && user.AvatarRef != "" {
		_ = a.avatars.Delete(ctx, user.AvatarRef)
	}
	return nil
}

func (a *App) avatarURL(ctx context.Context, ref string) string {
	if ref == "" || a.avatars == nil {
		return ""
	}
	url, err := a.avatars.URL(ctx, ref)
	if err != nil {
		return ""
	}
	return url
}
