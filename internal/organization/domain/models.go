// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization represents a tenant. OrgName prefixes every tenant table and
// never changes after creation.
type Organization struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgName               string       `gorm:"column:org_name;size:64;not null;uniqueIndex:ux_organizations_org_name" json:"org_name"`
	DisplayName           string       `gorm:"column:display_name;not null" json:"display_name"`
	Plan                  string       `gorm:"column:plan;size:32;not null" json:"plan"`
	MaxFunctions          int64        `gorm:"column:max_functions;not null" json:"max_functions"`
	FunctionsCreated      int64        `gorm:"column:functions_created;not null;default:0" json:"functions_created"`
	SubscriptionUpdatedAt time.Time    `gorm:"column:subscription_updated_at;not null" json:"subscription_updated_at"`
	CreatedAt             time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Unlimited reports whether the plan has no function limit.
func (o Organization) Unlimited() bool { return o.MaxFunctions < 0 }
