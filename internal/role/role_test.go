package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTeam(t *testing.T) {
	cases := map[string]Membership{
		"admin":       Admin,
		"super_admin": Admin,
		" Admin ":     Admin,
		"agent":       Agent,
		"homeowner":   Homeowner,
		"viewer":      Agent,
		"owner":       Agent,
		"":            Agent,
		"janitor":     Agent,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTeam(in), "input %q", in)
	}
}

func TestParseMembershipStrict(t *testing.T) {
	m, err := ParseMembershipStrict("VIEWER")
	require.NoError(t, err)
	assert.Equal(t, Viewer, m)

	m, err = ParseMembershipStrict("super_admin")
	require.NoError(t, err)
	assert.Equal(t, Admin, m)

	_, err = ParseMembershipStrict("root")
	assert.ErrorIs(t, err, ErrInvalidRole)

	assert.Equal(t, Agent, ParseMembership("root"))
	assert.Equal(t, Owner, ParseMembership("owner"))
}

func TestParseUserRole(t *testing.T) {
	r, err := ParseUserRole("super_admin")
	require.NoError(t, err)
	assert.Equal(t, UserSuperAdmin, r)

	_, err = ParseUserRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUserRoleFor(t *testing.T) {
	assert.Equal(t, UserAdmin, UserRoleFor(Owner))
	assert.Equal(t, UserAdmin, UserRoleFor(Admin))
	assert.Equal(t, UserAgent, UserRoleFor(Agent))
	assert.Equal(t, UserHomeowner, UserRoleFor(Homeowner))
	assert.Equal(t, UserViewer, UserRoleFor(Viewer))
}
