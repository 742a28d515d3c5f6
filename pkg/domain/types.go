package domain

import "time"

// User is an account record. Usernames are globally unique and case-sensitive.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Description  string    `json:"description"`
	AvatarRef    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public projection of a user record.
type Profile struct {
	Username    string `json:"username"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Group is a named chat room.
type Group struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one stored chat message. Ciphertext is the cipher envelope,
// never plaintext; Seq fixes append order within a group.
type Message struct {
	Seq        uint64    `json:"-"`
	Group      string    `json:"group"`
	Author     string    `json:"username"`
	Ciphertext string    `json:"-"`
	CreatedAt  time.Time `json:"timestamp"`
}

// MessageView is a decrypted message as returned to clients.
type MessageView struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}
