package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/role"
)

type Scope string

const (
	ScopeAccount  Scope = "account"
	ScopeProperty Scope = "property"
)

type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateDeclined State = "declined"
	StateRevoked  State = "revoked"
	StateExpired  State = "expired"
)

func (s State) Terminal() bool {
	return s != StatePending
}

func ParseState(raw string) (State, error) {
	switch s := State(raw); s {
	case StatePending, StateAccepted, StateDeclined, StateRevoked, StateExpired:
		return s, nil
	default:
		return "", ErrInvalidState
	}
}

// Invitation stores only the digest of its token.
type Invitation struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	TokenHash  string          `gorm:"column:token_hash;not null;uniqueIndex" json:"-"`
	Scope      Scope           `gorm:"not null" json:"scope"`
	InvitedBy  snowflake.ID    `gorm:"not null;index" json:"invited_by"`
	Email      string          `gorm:"not null" json:"email"`
	AccountID  snowflake.ID    `gorm:"not null;index" json:"account_id"`
	PropertyID *snowflake.ID   `gorm:"index" json:"property_id,omitempty"`
	Role       role.Membership `gorm:"not null" json:"role"`
	State      State           `gorm:"not null" json:"state"`
	ExpiresAt  time.Time       `gorm:"not null" json:"expires_at"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invitation) TableName() string { return "user_invitations" }

// EffectiveState reports expired for a pending invitation whose expiry has
// been reached, even if the row still says pending.
func (i Invitation) EffectiveState(now time.Time) State {
	if i.State == StatePending && !now.Before(i.ExpiresAt) {
		return StateExpired
	}
	return i.State
}
