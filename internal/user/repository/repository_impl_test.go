package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/proppass/internal/role"
	"github.com/smallbiznis/proppass/internal/testutil"
	"github.com/smallbiznis/proppass/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := Provide()

	now := time.Now().UTC()
	user := &domain.User{
		ID:        node.Generate(),
		Email:     "ana@example.com",
		Name:      "Ana",
		Role:      role.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(ctx, db, user))

	dup := *user
	dup.ID = node.Generate()
	assert.ErrorIs(t, repo.Insert(ctx, db, &dup), domain.ErrEmailTaken)

	found, err := repo.FindByEmail(ctx, db, "ANA@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.False(t, found.IsActive)
	assert.Nil(t, found.PasswordHash)

	missing, err := repo.FindByEmail(ctx, db, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	digest := "digest"
	require.NoError(t, repo.Activate(ctx, db, user.ID, &digest, now))

	found, err = repo.FindByID(ctx, db, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsActive)
	require.NotNil(t, found.PasswordHash)
	assert.Equal(t, "digest", *found.PasswordHash)

	assert.ErrorIs(t, repo.Activate(ctx, db, node.Generate(), nil, now), domain.ErrNotFound)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := domain.NormalizeEmail("  X@Y ")
	require.NoError(t, err)
	assert.Equal(t, "x@y", email)

	for _, bad := range []string{"", "@y", "x@", "no-at", "a b@c"} {
		_, err := domain.NormalizeEmail(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, bad)
	}
}
