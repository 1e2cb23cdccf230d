package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/role"
	"gorm.io/gorm"
)

type User struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email        string        `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash *string       `gorm:"column:password_hash" json:"-"`
	Name         string        `gorm:"not null" json:"name"`
	Role         role.UserRole `gorm:"not null" json:"role"`
	IsActive     bool          `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Repository methods take the handle explicitly so callers decide whether
// they run inside a transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	Activate(ctx context.Context, db *gorm.DB, id snowflake.ID, passwordHash *string, at time.Time) error
}

var (
	ErrNotFound        = errors.New("user_not_found")
	ErrEmailTaken      = errors.New("email_taken")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
)

// NormalizeEmail trims and lowercases an address and rejects obvious junk.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
