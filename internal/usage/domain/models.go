package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	CategoryAITokens = "ai_tokens"
	CategoryStorage  = "storage"
	CategoryEmail    = "email"
)

// Event is an immutable metering record. TotalCost is fixed at insert.
type Event struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID      `gorm:"not null;index" json:"account_id"`
	UserID    *snowflake.ID     `json:"user_id,omitempty"`
	Category  string            `gorm:"not null" json:"category"`
	Resource  string            `gorm:"not null" json:"resource"`
	Quantity  float64           `gorm:"not null" json:"quantity"`
	Unit      string            `gorm:"not null" json:"unit"`
	UnitCost  float64           `gorm:"not null" json:"unit_cost"`
	TotalCost float64           `gorm:"not null" json:"total_cost"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string { return "account_usage_events" }

type CategorySpend struct {
	Category string  `json:"category"`
	Spend    float64 `json:"spend"`
}

type Budget struct {
	Category     string  `json:"category,omitempty"`
	Spend        float64 `json:"spend"`
	Cap          float64 `json:"cap"`
	Remaining    float64 `json:"remaining"`
	WithinBudget bool    `json:"within_budget"`
}
