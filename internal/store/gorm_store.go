package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"chatvault/pkg/domain"
)

// GormStore implements Store using GORM + Postgres. Duplicate-key and
// row-count checks map database outcomes onto the package sentinels.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &GroupModel{}, &MessageModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a new user, rejecting duplicates.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// GetUser returns a user by username.
func (s *GormStore) GetUser(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser rewrites an existing user record.
func (s *GormStore) UpdateUser(u domain.User) error {
	res := s.db.Model(&UserModel{}).Where("username = ?", u.Username).Updates(map[string]any{
		"password_hash": u.PasswordHash,
		"description":   u.Description,
		"avatar_ref":    u.AvatarRef,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user record.
func (s *GormStore) DeleteUser(username string) error {
	res := s.db.Delete(&UserModel{}, "username = ?", username)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateGroup inserts a new group, rejecting duplicates.
func (s *GormStore) CreateGroup(g domain.Group) error {
	model := GroupModel{Name: g.Name, CreatedAt: g.CreatedAt}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrGroupExists
		}
		return err
	}
	return nil
}

// HasGroup checks group existence.
func (s *GormStore) HasGroup(name string) (bool, error) {
	var count int64
	if err := s.db.Model(&GroupModel{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListGroups returns all group names.
func (s *GormStore) ListGroups() ([]string, error) {
	var names []string
	if err := s.db.Model(&GroupModel{}).Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// DeleteGroup removes a group and its messages in one transaction.
func (s *GormStore) DeleteGroup(name string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "group_name = ?", name).Error; err != nil {
			return err
		}
		res := tx.Delete(&GroupModel{}, "name = ?", name)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage records a message. Each append is a row insert, so
// concurrent sends to the same group never overwrite each other.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := MessageModel{
		GroupName:  msg.Group,
		Author:     msg.Author,
		Ciphertext: msg.Ciphertext,
		CreatedAt:  msg.CreatedAt,
	}
	return s.db.Create(&model).Error
}

// ListMessages returns a group's messages in append order.
func (s *GormStore) ListMessages(group string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("group_name = ?", group).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, domain.Message{
			Seq:        m.Seq,
			Group:      m.GroupName,
			Author:     m.Author,
			Ciphertext: m.Ciphertext,
			CreatedAt:  m.CreatedAt,
		})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Description:  u.Description,
		AvatarRef:    u.AvatarRef,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Description:  m.Description,
		AvatarRef:    m.AvatarRef,
		CreatedAt:    m.CreatedAt,
	}
}
