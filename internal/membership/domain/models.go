package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/role"
	"gorm.io/gorm"
)

// Membership is a user's role on a property. At most one row per
// (property, user).
type Membership struct {
	PropertyID snowflake.ID    `gorm:"primaryKey" json:"property_id"`
	UserID     snowflake.ID    `gorm:"primaryKey" json:"user_id"`
	Role       role.Membership `gorm:"not null" json:"role"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (Membership) TableName() string { return "property_users" }

// Member is one entry of a requested team. Role is free-form input and is
// normalized by the service.
type Member struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role,omitempty"`
}

type AddResult struct {
	Added         int          `json:"added"`
	PropertyUsers []Membership `json:"property_users"`
}

type Repository interface {
	PropertyAccount(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (snowflake.ID, error)
	ListUserIDs(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) ([]snowflake.ID, error)
	Delete(ctx context.Context, db *gorm.DB, propertyID snowflake.ID, userIDs []snowflake.ID) error
	Upsert(ctx context.Context, db *gorm.DB, rows []Membership) error
	List(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) ([]Membership, error)
	Find(ctx context.Context, db *gorm.DB, propertyID, userID snowflake.ID) (*Membership, error)
}

type Service interface {
	AddUsers(ctx context.Context, propertyID snowflake.ID, members []Member) (AddResult, error)
	SyncTeam(ctx context.Context, propertyID snowflake.ID, desired []Member) ([]Membership, error)
	List(ctx context.Context, propertyID snowflake.ID) ([]Membership, error)
	RoleOf(ctx context.Context, propertyID, userID snowflake.ID) (role.Membership, bool, error)
}

var (
	ErrInvalidProperty  = errors.New("invalid_property")
	ErrInvalidUser      = errors.New("invalid_user")
	ErrEmptyMembers     = errors.New("invalid_users")
	ErrPropertyNotFound = errors.New("property_not_found")
)
