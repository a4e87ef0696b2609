package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// UserStore looks up and creates accounts.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// GormUserStore handles user persistence using GORM.
type GormUserStore struct {
	db *gorm.DB
}

var _ UserStore = (*GormUserStore)(nil)

// NewGormUserStore migrates the users table and returns a store.
func NewGormUserStore(db *gorm.DB) (*GormUserStore, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users: %w", err)
	}
	return &GormUserStore{db: db}, nil
}

// FindByUsername finds a user by username.
func (s *GormUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// Create inserts a user whose password is already hashed.
func (s *GormUserStore) Create(ctx context.Context, user *User) error {
	result := s.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return ErrDuplicateUsername
		}
		return result.Error
	}
	return nil
}

// isDuplicateKey recognizes unique violations whether or not the dialector
// translated them.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
