package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TargetType string

const (
	TargetFunction TargetType = "Function"
	TargetPayer    TargetType = "Payer"
)

type Action string

const (
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionRestore         Action = "restore"
	ActionPermanentDelete Action = "permanent_delete"
)

// EditLog is an immutable audit record. Rows live in the tenant's {org}_edit_logs table.
type EditLog struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	TargetID      string                      `gorm:"column:target_id;type:varchar(512);not null" json:"target_id"`
	TargetType    TargetType                  `gorm:"column:target_type;not null" json:"target_type"`
	Action        Action                      `gorm:"column:action;size:32;not null" json:"action"`
	Before        datatypes.JSONMap           `gorm:"column:before_snapshot" json:"before"`
	After         datatypes.JSONMap           `gorm:"column:after_snapshot" json:"after"`
	ChangedFields datatypes.JSONSlice[string] `gorm:"column:changed_fields" json:"changed_fields"`
	Reason        string                      `gorm:"column:reason;not null" json:"reason"`
	CreatedBy     string                      `gorm:"column:created_by;size:191;not null" json:"created_by"`
	CreatedByName string                      `gorm:"column:created_by_name" json:"created_by_name,omitempty"`
	CreatedAt     time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
}
