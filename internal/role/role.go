// Package role is the single place where role strings are parsed and
// normalized. Other packages must go through it instead of comparing raw
// strings.
package role

import (
	"errors"
	"strings"
)

// UserRole is the global role tag stored on a user.
type UserRole string

const (
	UserSuperAdmin UserRole = "super_admin"
	UserAdmin      UserRole = "admin"
	UserAgent      UserRole = "agent"
	UserHomeowner  UserRole = "homeowner"
	UserViewer     UserRole = "viewer"
)

// Membership is a user's role on a property or account.
type Membership string

const (
	Owner     Membership = "owner"
	Admin     Membership = "admin"
	Agent     Membership = "agent"
	Homeowner Membership = "homeowner"
	Viewer    Membership = "viewer"
)

var ErrInvalidRole = errors.New("invalid_role")

func (m Membership) String() string { return string(m) }

func (r UserRole) String() string { return string(r) }

// NormalizeTeam maps a requested team role onto {admin, agent, homeowner}.
// super_admin is an alias for admin; anything else becomes agent.
func NormalizeTeam(raw string) Membership {
	switch clean(raw) {
	case string(Admin), string(UserSuperAdmin):
		return Admin
	case string(Homeowner):
		return Homeowner
	default:
		return Agent
	}
}

// ParseMembership accepts every membership role plus the super_admin alias
// and falls back to agent for empty or unknown values.
func ParseMembership(raw string) Membership {
	m, err := ParseMembershipStrict(raw)
	if err != nil {
		return Agent
	}
	return m
}

// ParseMembershipStrict rejects unknown values.
func ParseMembershipStrict(raw string) (Membership, error) {
	switch clean(raw) {
	case string(Owner):
		return Owner, nil
	case string(Admin), string(UserSuperAdmin):
		return Admin, nil
	case string(Agent):
		return Agent, nil
	case string(Homeowner):
		return Homeowner, nil
	case string(Viewer):
		return Viewer, nil
	default:
		return "", ErrInvalidRole
	}
}

// ParseUserRole validates a global user role.
func ParseUserRole(raw string) (UserRole, error) {
	switch r := UserRole(clean(raw)); r {
	case UserSuperAdmin, UserAdmin, UserAgent, UserHomeowner, UserViewer:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// UserRoleFor derives the global role for a user created from a membership.
func UserRoleFor(m Membership) UserRole {
	switch m {
	case Owner, Admin:
		return UserAdmin
	case Homeowner:
		return UserHomeowner
	case Viewer:
		return UserViewer
	default:
		return UserAgent
	}
}

func clean(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
