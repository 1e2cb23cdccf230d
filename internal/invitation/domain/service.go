package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListQuery struct {
	InvitedBy  snowflake.ID
	AccountID  snowflake.ID
	PropertyID snowflake.ID
	States     []State
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invitation *Invitation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invitation, error)
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*Invitation, error)
	// Transition moves a row from one state to another and reports whether
	// the row was still in the from state.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to State, consumedAt *time.Time, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, query ListQuery) ([]Invitation, error)
	ListOverdue(ctx context.Context, db *gorm.DB, at time.Time, limit int) ([]Invitation, error)
}

type CreateRequest struct {
	Scope      string
	InvitedBy  snowflake.ID
	Email      string
	AccountID  snowflake.ID
	PropertyID *snowflake.ID
	Role       string
}

// CreateResult carries the raw token exactly once.
type CreateResult struct {
	Invitation Invitation `json:"invitation"`
	Token      string     `json:"token"`
}

type AcceptRequest struct {
	// InvitationID, when set, must match the invitation the token resolves to.
	InvitationID snowflake.ID
	Token        string
	Password     *string
	Name         string
}

type AcceptResult struct {
	Success bool         `json:"success"`
	UserID  snowflake.ID `json:"userId"`
}

// DeclineRequest proves the caller is the invitee, either with the raw token
// or with the invitee's email.
type DeclineRequest struct {
	ID    snowflake.ID
	Token string
	Email string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (CreateResult, error)
	Accept(ctx context.Context, req AcceptRequest) (AcceptResult, error)
	Decline(ctx context.Context, req DeclineRequest) (State, error)
	Revoke(ctx context.Context, id snowflake.ID) (State, error)
	Get(ctx context.Context, id snowflake.ID) (Invitation, error)

	ListSent(ctx context.Context, inviterID snowflake.ID, state string) ([]Invitation, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID, state string) ([]Invitation, error)
	ListByProperty(ctx context.Context, propertyID snowflake.ID, state string) ([]Invitation, error)

	// SweepExpired moves up to limit lapsed pending invitations to expired
	// and reports how many it moved.
	SweepExpired(ctx context.Context, limit int) (int, error)
}

var (
	ErrAcceptInvalid   = errors.New("invalid_invitation")
	ErrInvalidScope    = errors.New("invalid_scope")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidProperty = errors.New("invalid_property")
	ErrInvalidInviter  = errors.New("invalid_inviter")
	ErrInvalidState    = errors.New("invalid_state")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("invitation_not_found")
	ErrAccountNotFound = errors.New("account_not_found")
	ErrPropertyMissing = errors.New("property_not_found")
	ErrNotInvitee      = errors.New("not_invitee")
	ErrTokenCollision  = errors.New("invitation token collision")
)
