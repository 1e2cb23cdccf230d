package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/membership/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) PropertyAccount(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (snowflake.ID, error) {
	var accountID int64
	err := db.WithContext(ctx).Raw(
		`SELECT account_id FROM properties WHERE id = ?`,
		propertyID,
	).Scan(&accountID).Error
	if err != nil {
		return 0, err
	}
	return snowflake.ID(accountID), nil
}

func (r *repo) ListUserIDs(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) ([]snowflake.ID, error) {
	var raw []int64
	err := db.WithContext(ctx).Raw(
		`SELECT user_id FROM property_users WHERE property_id = ?`,
		propertyID,
	).Scan(&raw).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, propertyID snowflake.ID, userIDs []snowflake.ID) error {
	if len(userIDs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, int64(id))
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM property_users WHERE property_id = ? AND user_id IN ?`,
		propertyID,
		ids,
	).Error
}

// Upsert writes every row in one statement. Existing rows keep created_at.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rows []domain.Membership) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO property_users (property_id, user_id, role, created_at, updated_at) VALUES `)
	args := make([]any, 0, len(rows)*5)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, row.PropertyID, row.UserID, row.Role, row.CreatedAt, row.UpdatedAt)
	}
	sb.WriteString(` ON CONFLICT (property_id, user_id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`)

	return db.WithContext(ctx).Exec(sb.String(), args...).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) ([]domain.Membership, error) {
	var rows []domain.Membership
	err := db.WithContext(ctx).Raw(
		`SELECT property_id, user_id, role, created_at, updated_at
		 FROM property_users WHERE property_id = ?
		 ORDER BY created_at ASC, user_id ASC`,
		propertyID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, propertyID, userID snowflake.ID) (*domain.Membership, error) {
	var row domain.Membership
	err := db.WithContext(ctx).Raw(
		`SELECT property_id, user_id, role, created_at, updated_at
		 FROM property_users WHERE property_id = ? AND user_id = ?`,
		propertyID,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.PropertyID == 0 {
		return nil, nil
	}
	return &row, nil
}
