package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/tier/domain"
	"gorm.io/gorm"
)

const subscriptionStatusActive = "active"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ActiveSubscriptionCaps picks the most expensive active product. Equal
// prices resolve to the lowest product id.
func (r *repo) ActiveSubscriptionCaps(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*domain.ProductCaps, error) {
	var row domain.ProductCaps
	err := db.WithContext(ctx).Raw(
		`SELECT p.id AS product_id, p.max_properties, p.max_contacts, p.max_viewers, p.max_team_members
		 FROM account_subscriptions s
		 JOIN subscription_products p ON p.id = s.product_id
		 WHERE s.account_id = ? AND s.status = ?
		 ORDER BY p.price DESC, p.id ASC
		 LIMIT 1`,
		accountID,
		subscriptionStatusActive,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ProductID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FreeProductCaps(ctx context.Context, db *gorm.DB) (*domain.ProductCaps, error) {
	var row domain.ProductCaps
	err := db.WithContext(ctx).Raw(
		`SELECT id AS product_id, max_properties, max_contacts, max_viewers, max_team_members
		 FROM subscription_products
		 WHERE LOWER(name) = 'free' AND is_active = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		true,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ProductID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) CountProperties(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM properties WHERE account_id = ?`,
		accountID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountContacts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM contacts WHERE account_id = ?`,
		accountID,
	).Scan(&count).Error
	return count, err
}

// CountPropertyMembers counts memberships on a property, restricted to role
// when role is non-empty.
func (r *repo) CountPropertyMembers(ctx context.Context, db *gorm.DB, propertyID snowflake.ID, role string) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx)
	var err error
	if role == "" {
		err = stmt.Raw(
			`SELECT COUNT(*) FROM property_users WHERE property_id = ?`,
			propertyID,
		).Scan(&count).Error
	} else {
		err = stmt.Raw(
			`SELECT COUNT(*) FROM property_users WHERE property_id = ? AND role = ?`,
			propertyID,
			role,
		).Scan(&count).Error
	}
	return count, err
}
