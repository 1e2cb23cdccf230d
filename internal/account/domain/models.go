package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/role"
)

type Account struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Member is an account-scoped membership. At most one row per (account, user).
type Member struct {
	AccountID snowflake.ID    `gorm:"primaryKey" json:"account_id"`
	UserID    snowflake.ID    `gorm:"primaryKey" json:"user_id"`
	Role      role.Membership `gorm:"not null" json:"role"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string { return "account_users" }

type Contact struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	Name      string       `gorm:"not null" json:"name"`
	Email     *string      `json:"email,omitempty"`
	Phone     *string      `json:"phone,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Contact) TableName() string { return "contacts" }
