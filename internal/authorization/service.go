package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service decides whether a user may perform an action on an account or a
// property. Users with the super_admin role are always allowed.
type Service interface {
	AuthorizeAccount(ctx context.Context, userID, accountID snowflake.ID, action string) error
	AuthorizeProperty(ctx context.Context, userID, propertyID snowflake.ID, action string) error
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidAction   = errors.New("invalid_action")
)
