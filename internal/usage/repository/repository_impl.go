package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/smallbiznis/proppass/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO account_usage_events
		 (id, account_id, user_id, category, resource, quantity, unit, unit_cost, total_cost, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.AccountID,
		event.UserID,
		event.Category,
		event.Resource,
		event.Quantity,
		event.Unit,
		event.UnitCost,
		event.TotalCost,
		event.Metadata,
		event.CreatedAt,
	).Error
}

// SumSince totals spend since the given instant. An empty category sums
// every category.
func (r *repo) SumSince(ctx context.Context, db *gorm.DB, accountID snowflake.ID, category string, since time.Time) (float64, error) {
	var total float64
	stmt := db.WithContext(ctx).
		Table("account_usage_events").
		Select("COALESCE(SUM(total_cost), 0)").
		Where("account_id = ? AND created_at >= ?", accountID, since)
	if category != "" {
		stmt = stmt.Where("category = ?", category)
	}
	if err := stmt.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) SumByCategorySince(ctx context.Context, db *gorm.DB, accountID snowflake.ID, since time.Time) ([]domain.CategorySpend, error) {
	var rows []domain.CategorySpend
	err := db.WithContext(ctx).Raw(
		`SELECT category, COALESCE(SUM(total_cost), 0) AS spend
		 FROM account_usage_events
		 WHERE account_id = ? AND created_at >= ?
		 GROUP BY category
		 ORDER BY spend DESC, category ASC`,
		accountID,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns events most recent first. It fetches one extra row so the
// caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, accountID snowflake.ID, category string, page pagination.Page) ([]domain.Event, error) {
	var events []domain.Event
	stmt := db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("account_id = ?", accountID)
	if category != "" {
		stmt = stmt.Where("category = ?", category)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.Limit + 1).
		Offset(page.Offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
