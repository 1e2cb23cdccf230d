package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Caps are the numeric ceilings drawn from a subscription product.
type Caps struct {
	MaxProperties  int `gorm:"column:max_properties" json:"max_properties"`
	MaxContacts    int `gorm:"column:max_contacts" json:"max_contacts"`
	MaxViewers     int `gorm:"column:max_viewers" json:"max_viewers"`
	MaxTeamMembers int `gorm:"column:max_team_members" json:"max_team_members"`
}

// DefaultCaps apply when an account has no active subscription and no active
// product named "free" exists.
var DefaultCaps = Caps{
	MaxProperties:  3,
	MaxContacts:    50,
	MaxViewers:     5,
	MaxTeamMembers: 10,
}

// ProductCaps is a subscription product row projected onto its caps.
type ProductCaps struct {
	ProductID snowflake.ID `gorm:"column:product_id"`
	Caps
}

// Admission is the result of a cap check. Allowed is always Current < Max.
type Admission struct {
	Allowed bool  `json:"allowed"`
	Current int64 `json:"current"`
	Max     int   `json:"max"`
}

func NewAdmission(current int64, max int) Admission {
	return Admission{
		Allowed: current < int64(max),
		Current: current,
		Max:     max,
	}
}

type Resource string

const (
	ResourceProperty   Resource = "property"
	ResourceContact    Resource = "contact"
	ResourceViewer     Resource = "viewer"
	ResourceTeamMember Resource = "team_member"
)

var (
	ErrCapExceeded     = errors.New("cap_exceeded")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidProperty = errors.New("invalid_property")
	ErrAccountLockBusy = errors.New("account_lock_busy")
)

// CapExceededError reports which cap denied an action.
type CapExceededError struct {
	Resource  Resource
	Admission Admission
}

func (e *CapExceededError) Error() string {
	label := string(e.Resource)
	if e.Resource == ResourceTeamMember {
		label = "team member"
	}
	return fmt.Sprintf("%s limit reached (%d/%d)", label, e.Admission.Current, e.Admission.Max)
}

func (e *CapExceededError) Is(target error) bool {
	return target == ErrCapExceeded
}

// Require converts a denied admission into a *CapExceededError.
func Require(resource Resource, adm Admission) error {
	if adm.Allowed {
		return nil
	}
	return &CapExceededError{Resource: resource, Admission: adm}
}
