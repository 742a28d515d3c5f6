package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	Username     string `gorm:"primaryKey"`
	PasswordHash string `gorm:"not null"`
	Description  string
	AvatarRef    string
	CreatedAt    time.Time `gorm:"not null"`
}

type GroupModel struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

type MessageModel struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	GroupName  string    `gorm:"not null;index"`
	Author     string    `gorm:"not null"`
	Ciphertext string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}
