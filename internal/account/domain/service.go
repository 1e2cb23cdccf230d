package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/role"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpsertMember(ctx context.Context, db *gorm.DB, member *Member) error
	FindMember(ctx context.Context, db *gorm.DB, accountID, userID snowflake.ID) (*Member, error)
	InsertContact(ctx context.Context, db *gorm.DB, contact *Contact) error
	ListContacts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Contact, error)
}

type CreateAccountRequest struct {
	Name    string
	OwnerID snowflake.ID
}

type AddContactRequest struct {
	AccountID snowflake.ID
	Name      string
	Email     string
	Phone     string
}

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (Account, error)
	Get(ctx context.Context, id snowflake.ID) (Account, error)
	MemberRole(ctx context.Context, accountID, userID snowflake.ID) (role.Membership, bool, error)
	AddContact(ctx context.Context, req AddContactRequest) (Contact, error)
	ListContacts(ctx context.Context, accountID snowflake.ID) ([]Contact, error)
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidOwner   = errors.New("invalid_owner")
	ErrNotFound       = errors.New("account_not_found")
)
