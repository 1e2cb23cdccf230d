package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ActiveSubscriptionCaps(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*ProductCaps, error)
	FreeProductCaps(ctx context.Context, db *gorm.DB) (*ProductCaps, error)
	CountProperties(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
	CountContacts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, error)
	CountPropertyMembers(ctx context.Context, db *gorm.DB, propertyID snowflake.ID, role string) (int64, error)
}

// Service resolves caps and answers admission checks. Checks are read-only;
// WithTx binds them to a caller's transaction.
type Service interface {
	WithTx(tx *gorm.DB) Service

	GetAccountLimits(ctx context.Context, accountID snowflake.ID) (Caps, error)
	CanCreateProperty(ctx context.Context, accountID snowflake.ID) (Admission, error)
	CanAddContact(ctx context.Context, accountID snowflake.ID) (Admission, error)
	CanInviteViewer(ctx context.Context, accountID, propertyID snowflake.ID) (Admission, error)
	CanAddTeamMember(ctx context.Context, accountID, propertyID snowflake.ID) (Admission, error)
}

// Guard serializes check-then-insert sequences per account.
type Guard interface {
	WithAccountLock(ctx context.Context, accountID snowflake.ID, fn func(tx *gorm.DB) error) error
}
