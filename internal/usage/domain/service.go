package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	SumSince(ctx context.Context, db *gorm.DB, accountID snowflake.ID, category string, since time.Time) (float64, error)
	SumByCategorySince(ctx context.Context, db *gorm.DB, accountID snowflake.ID, since time.Time) ([]CategorySpend, error)
	List(ctx context.Context, db *gorm.DB, accountID snowflake.ID, category string, page pagination.Page) ([]Event, error)
}

type LogRequest struct {
	AccountID snowflake.ID
	UserID    *snowflake.ID
	Category  string
	Resource  string
	Quantity  float64
	Unit      string
	UnitCost  float64
	Metadata  map[string]any
}

// MeterRequest describes raw consumption; the service prices it from the
// configured rate table before logging.
type MeterRequest struct {
	AccountID        snowflake.ID
	UserID           *snowflake.ID
	Category         string
	Resource         string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Bytes            int64
	Metadata         map[string]any
}

type HistoryRequest struct {
	AccountID snowflake.ID
	Category  string
	Page      pagination.Page
}

type HistoryResponse struct {
	pagination.PageInfo
	Events []Event `json:"events"`
}

type Service interface {
	Log(ctx context.Context, req LogRequest) (Event, error)
	Meter(ctx context.Context, req MeterRequest) (Event, error)
	GetMonthlySpend(ctx context.Context, accountID snowflake.ID) (float64, error)
	GetMonthlySpendByCategory(ctx context.Context, accountID snowflake.ID) ([]CategorySpend, error)
	CheckBudget(ctx context.Context, accountID snowflake.ID, category string, cap float64) (Budget, error)
	GetHistory(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidUnit     = errors.New("invalid_unit")
	ErrInvalidUnitCost = errors.New("invalid_unit_cost")
	ErrInvalidCap      = errors.New("invalid_cap")
	ErrInvalidModel    = errors.New("invalid_model")
)
