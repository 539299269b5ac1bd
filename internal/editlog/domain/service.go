package domain

import (
	"context"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one reasoned mutation. Before and After are the entity
// values around the change; either may be nil.
type Entry struct {
	TargetID   string
	TargetType TargetType
	Action     Action
	Before     any
	After      any
	Reason     string
}

type ListEditLogRequest struct {
	TargetID   string
	TargetType TargetType
	Action     Action
	PageToken  string
	PageSize   int
}

type ListEditLogFilter struct {
	TargetID   string
	TargetType TargetType
	Action     Action
}

type ListEditLogResponse struct {
	pagination.PageInfo
	EditLogs []EditLog `json:"edit_logs"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *EditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListEditLogFilter, page pagination.Pagination) ([]*EditLog, error)
}

type Service interface {
	// Record writes the entry on tx, which must be the caller's open transaction.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (EditLog, error)
	List(context.Context, ListEditLogRequest) (ListEditLogResponse, error)
}

var (
	ErrInvalidOrganization = apperr.Configuration("missing_tenant", "organization is missing from context")
	ErrMissingReason       = apperr.Validation("missing_reason", "an edit reason is required")
	ErrInvalidTarget       = apperr.Validation("invalid_target", "edit log target is required")
	ErrInvalidAction       = apperr.Validation("invalid_action", "edit log action is not supported")
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionUpdate, ActionDelete, ActionRestore, ActionPermanentDelete:
		return true
	}
	return false
}

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetFunction || t == TargetPayer
}
