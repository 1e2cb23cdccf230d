package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, property *Property) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Property, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, cols map[string]any) (int64, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Property, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Property, error)
	Get(ctx context.Context, id snowflake.ID) (Property, error)
	Update(ctx context.Context, req UpdateRequest) (Property, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID) ([]Property, error)
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidCreator = errors.New("invalid_creator")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("property_not_found")
)
