package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db := testutil.OpenDB(t)
	enforcer, err := NewEnforcer(db, config.Config{})
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zaptest.NewLogger(t), Enforcer: enforcer}), db
}

func TestAuthorizePropertyByRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	node := testutil.Node(t)
	now := time.Now().UTC()

	owner := testutil.SeedUser(t, db, node, "owner@example.com", "admin")
	agent := testutil.SeedUser(t, db, node, "agent@example.com", "agent")
	viewer := testutil.SeedUser(t, db, node, "viewer@example.com", "viewer")
	accountID := testutil.SeedAccount(t, db, node, "acme")
	propertyID := testutil.SeedProperty(t, db, node, accountID, owner)
	testutil.SeedMembership(t, db, propertyID, owner, "owner", now)
	testutil.SeedMembership(t, db, propertyID, agent, "agent", now)
	testutil.SeedMembership(t, db, propertyID, viewer, "viewer", now)

	assert.NoError(t, svc.AuthorizeProperty(ctx, owner, propertyID, ActionTeamManage))
	assert.NoError(t, svc.AuthorizeProperty(ctx, agent, propertyID, ActionPropertyUpdate))
	assert.ErrorIs(t, svc.AuthorizeProperty(ctx, agent, propertyID, ActionTeamManage), ErrForbidden)
	assert.NoError(t, svc.AuthorizeProperty(ctx, viewer, propertyID, ActionPropertyView))
	assert.ErrorIs(t, svc.AuthorizeProperty(ctx, viewer, propertyID, ActionPropertyUpdate), ErrForbidden)
}

func TestAuthorizePropertyFallsBackToAccountRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	node := testutil.Node(t)

	admin := testutil.SeedUser(t, db, node, "admin@example.com", "admin")
	stranger := testutil.SeedUser(t, db, node, "stranger@example.com", "agent")
	accountID := testutil.SeedAccount(t, db, node, "acme")
	propertyID := testutil.SeedProperty(t, db, node, accountID, admin)
	now := time.Now().UTC()
	require.NoError(t, db.Exec(
		`INSERT INTO account_users (account_id, user_id, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		accountID, admin, "admin", now, now,
	).Error)

	assert.NoError(t, svc.AuthorizeProperty(ctx, admin, propertyID, ActionTeamManage))
	assert.NoError(t, svc.AuthorizeAccount(ctx, admin, accountID, ActionUsageView))
	assert.ErrorIs(t, svc.AuthorizeProperty(ctx, stranger, propertyID, ActionPropertyView), ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizeAccount(ctx, stranger, accountID, ActionAccountView), ErrForbidden)
}

func TestSuperAdminBypassesPolicies(t *testing.T) {
	svc, db := newTestService(t)
	node := testutil.Node(t)

	root := testutil.SeedUser(t, db, node, "root@example.com", "super_admin")
	accountID := testutil.SeedAccount(t, db, node, "acme")

	assert.NoError(t, svc.AuthorizeAccount(context.Background(), root, accountID, ActionUsageLog))
}

func TestAuthorizeRejectsUnknownCallerAndAction(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	node := testutil.Node(t)
	accountID := testutil.SeedAccount(t, db, node, "acme")

	assert.ErrorIs(t, svc.AuthorizeAccount(ctx, 0, accountID, ActionAccountView), ErrUnauthenticated)
	assert.ErrorIs(t, svc.AuthorizeAccount(ctx, 987654321, accountID, ActionAccountView), ErrUnauthenticated)
	assert.ErrorIs(t, svc.AuthorizeAccount(ctx, 1, accountID, "nonsense"), ErrInvalidAction)
}
