package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/pkg/optional"
)

type Property struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID   string       `gorm:"not null;uniqueIndex" json:"external_id"`
	AccountID    snowflake.ID `gorm:"not null;index" json:"account_id"`
	PassportID   string       `gorm:"not null" json:"passport_id"`
	Slug         string       `gorm:"not null" json:"slug"`
	Name         *string      `json:"name"`
	AddressLine1 *string      `gorm:"column:address_line1" json:"address_line1"`
	AddressLine2 *string      `gorm:"column:address_line2" json:"address_line2"`
	City         *string      `json:"city"`
	State        *string      `json:"state"`
	Zip          *string      `json:"zip"`
	CreatedBy    snowflake.ID `gorm:"not null" json:"created_by"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

type CreateRequest struct {
	AccountID    snowflake.ID
	CreatedBy    snowflake.ID
	Name         string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Zip          string
}

// UpdateRequest carries only the fields the caller sent. Unset fields are
// left alone, null fields are cleared.
type UpdateRequest struct {
	ID           snowflake.ID
	Name         optional.String
	AddressLine1 optional.String
	AddressLine2 optional.String
	City         optional.String
	State        optional.String
	Zip          optional.String
}

// Columns returns the column assignments for every set field.
func (r UpdateRequest) Columns() map[string]any {
	cols := map[string]any{}
	for col, field := range map[string]optional.String{
		"name":          r.Name,
		"address_line1": r.AddressLine1,
		"address_line2": r.AddressLine2,
		"city":          r.City,
		"state":         r.State,
		"zip":           r.Zip,
	} {
		if field.IsSet() {
			cols[col] = field.SQLValue()
		}
	}
	return cols
}
