package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	membershiprepo "github.com/smallbiznis/proppass/internal/membership/repository"
	"github.com/smallbiznis/proppass/internal/property/domain"
	"github.com/smallbiznis/proppass/internal/property/repository"
	"github.com/smallbiznis/proppass/internal/role"
	"github.com/smallbiznis/proppass/internal/testutil"
	"github.com/smallbiznis/proppass/pkg/optional"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
	tierrepo "github.com/smallbiznis/proppass/internal/tier/repository"
	tierservice "github.com/smallbiznis/proppass/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupPropertyService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := testutil.OpenDB(t)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:             db,
		Log:            log,
		GenID:          testutil.Node(t),
		Clock:          fake,
		Repo:           repository.Provide(),
		MembershipRepo: membershiprepo.Provide(),
		Tier:           tierservice.New(tierservice.Params{DB: db, Log: log, Repo: tierrepo.Provide()}),
		Guard: tierservice.NewGuard(tierservice.GuardParams{
			DB:     db,
			Log:    log,
			Config: config.Config{CapLockBackend: config.LockBackendAdvisory},
		}),
		PassportNumber: func() int { return 42424 },
	})
	return svc, db, fake
}

func seedOwner(t *testing.T, db *gorm.DB) (accountID, userID snowflake.ID) {
	t.Helper()
	node := testutil.Node(t)
	userID = testutil.SeedUser(t, db, node, "owner@example.com", "admin")
	accountID = testutil.SeedAccount(t, db, node, "acme")
	return accountID, userID
}

func TestCreateProperty(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupPropertyService(t)
	accountID, userID := seedOwner(t, db)

	property, err := svc.Create(ctx, domain.CreateRequest{
		AccountID:    accountID,
		CreatedBy:    userID,
		AddressLine1: "500 Congress Ave",
		City:         "Austin",
		State:        "tx",
		Zip:          "78701-1234",
	})
	require.NoError(t, err)

	assert.Equal(t, "TX-78701-42424", property.PassportID)
	assert.Equal(t, "500-congress-ave-austin", property.Slug)
	_, err = ulid.Parse(property.ExternalID)
	assert.NoError(t, err)
	require.NotNil(t, property.State)
	assert.Equal(t, "TX", *property.State)
	assert.Nil(t, property.Name)

	var owner struct{ Role string }
	require.NoError(t, db.Raw(
		`SELECT role FROM property_users WHERE property_id = ? AND user_id = ?`,
		property.ID, userID,
	).Scan(&owner).Error)
	assert.Equal(t, role.Owner.String(), owner.Role)

	got, err := svc.Get(ctx, property.ID)
	require.NoError(t, err)
	assert.Equal(t, property.ExternalID, got.ExternalID)
}

func TestCreatePropertyDeniedAtCap(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupPropertyService(t)
	accountID, userID := seedOwner(t, db)
	product := testutil.SeedProduct(t, db, 3, "starter", 0, true, 3, 50, 5, 10)
	testutil.SeedSubscription(t, db, testutil.Node(t), accountID, product, "active")

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, domain.CreateRequest{AccountID: accountID, CreatedBy: userID, State: "tx", Zip: "78701"})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, domain.CreateRequest{AccountID: accountID, CreatedBy: userID, State: "tx", Zip: "78701"})
	require.ErrorIs(t, err, tierdomain.ErrCapExceeded)
	assert.Equal(t, "property limit reached (3/3)", err.Error())

	list, err := svc.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUpdatePropertyTriState(t *testing.T) {
	ctx := context.Background()
	svc, db, fake := setupPropertyService(t)
	accountID, userID := seedOwner(t, db)

	created, err := svc.Create(ctx, domain.CreateRequest{
		AccountID:    accountID,
		CreatedBy:    userID,
		Name:         "Lake House",
		AddressLine1: "1 Shore Rd",
		AddressLine2: "Unit 4",
		City:         "Austin",
		State:        "tx",
		Zip:          "78701",
	})
	require.NoError(t, err)

	req := domain.UpdateRequest{
		ID:           created.ID,
		AddressLine2: optional.NullString(),
		City:         optional.Of("Round Rock"),
		State:        optional.Of("tx "),
	}

	fake.Advance(time.Hour)
	updated, err := svc.Update(ctx, req)
	require.NoError(t, err)

	require.NotNil(t, updated.Name)
	assert.Equal(t, "Lake House", *updated.Name)
	require.NotNil(t, updated.AddressLine1)
	assert.Equal(t, "1 Shore Rd", *updated.AddressLine1)
	assert.Nil(t, updated.AddressLine2)
	require.NotNil(t, updated.City)
	assert.Equal(t, "Round Rock", *updated.City)
	require.NotNil(t, updated.State)
	assert.Equal(t, "TX", *updated.State)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	same, err := svc.Update(ctx, domain.UpdateRequest{ID: created.ID})
	require.NoError(t, err)
	assert.True(t, same.UpdatedAt.Equal(updated.UpdatedAt))

	_, err = svc.Update(ctx, domain.UpdateRequest{ID: 99, City: optional.Of("Nowhere")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
