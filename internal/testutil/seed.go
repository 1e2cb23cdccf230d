package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SeedUser inserts an active user and returns its id.
func SeedUser(t *testing.T, db *gorm.DB, node *snowflake.Node, email, role string) snowflake.ID {
	t.Helper()

	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO users (id, email, name, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, email, role, true, now, now,
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// SeedAccount inserts an account and returns its id.
func SeedAccount(t *testing.T, db *gorm.DB, node *snowflake.Node, name string) snowflake.ID {
	t.Helper()

	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO accounts (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

// SeedProperty inserts a bare property row owned by accountID.
func SeedProperty(t *testing.T, db *gorm.DB, node *snowflake.Node, accountID, createdBy snowflake.ID) snowflake.ID {
	t.Helper()

	id := node.Generate()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO properties (id, external_id, account_id, passport_id, slug, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "ext-"+id.String(), accountID, "TX-00000-10000", "", createdBy, now, now,
	).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}
	return id
}

// SeedMembership inserts a property_users row.
func SeedMembership(t *testing.T, db *gorm.DB, propertyID, userID snowflake.ID, role string, at time.Time) {
	t.Helper()

	if err := db.Exec(
		`INSERT INTO property_users (property_id, user_id, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		propertyID, userID, role, at, at,
	).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

// SeedProduct inserts a subscription product and returns its id.
func SeedProduct(t *testing.T, db *gorm.DB, id int64, name string, price float64, active bool, maxProperties, maxContacts, maxViewers, maxTeam int) snowflake.ID {
	t.Helper()

	if err := db.Exec(
		`INSERT INTO subscription_products (id, name, price, max_properties, max_contacts, max_viewers, max_team_members, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, price, maxProperties, maxContacts, maxViewers, maxTeam, active,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return snowflake.ID(id)
}

// SeedSubscription links an account to a product.
func SeedSubscription(t *testing.T, db *gorm.DB, node *snowflake.Node, accountID, productID snowflake.ID, status string) {
	t.Helper()

	if err := db.Exec(
		`INSERT INTO account_subscriptions (id, account_id, product_id, status) VALUES (?, ?, ?, ?)`,
		node.Generate(), accountID, productID, status,
	).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}
