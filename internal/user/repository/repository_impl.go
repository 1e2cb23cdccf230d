package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/user/domain"
	"github.com/smallbiznis/proppass/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, user *domain.User) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, password_hash, name, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := conn.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, name, role, is_active, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, conn *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := conn.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, name, role, is_active, created_at, updated_at
		 FROM users WHERE LOWER(email) = LOWER(?)`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// Activate marks the user active and, when passwordHash is non-nil, replaces
// the stored digest.
func (r *repo) Activate(ctx context.Context, conn *gorm.DB, id snowflake.ID, passwordHash *string, at time.Time) error {
	var res *gorm.DB
	if passwordHash != nil {
		res = conn.WithContext(ctx).Exec(
			`UPDATE users SET password_hash = ?, is_active = ?, updated_at = ? WHERE id = ?`,
			*passwordHash, true, at, id,
		)
	} else {
		res = conn.WithContext(ctx).Exec(
			`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
			true, at, id,
		)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
