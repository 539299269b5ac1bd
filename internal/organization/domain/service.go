package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"gorm.io/gorm"
)

type CreateOrganizationRequest struct {
	DisplayName string
	// OrgName defaults to the sanitized DisplayName.
	OrgName string
	// Plan defaults to the catalog default.
	Plan string
}

type CreateOrganizationResponse struct {
	Organization Organization  `json:"organization"`
	Provisioning tenant.Report `json:"provisioning"`
}

type ChangePlanRequest struct {
	OrgID string
	Plan  string
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (CreateOrganizationResponse, error)
	Get(ctx context.Context, id string) (Organization, error)
	GetByName(ctx context.Context, orgName string) (Organization, error)
	ListAll(ctx context.Context) ([]Organization, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) (Organization, error)
}

// LimitStatus is the subscription state consulted before creating a function.
type LimitStatus struct {
	Plan             string `json:"plan"`
	MaxFunctions     int64  `json:"max_functions"`
	FunctionsCreated int64  `json:"functions_created"`
	LimitReached     bool   `json:"limit_reached"`
}

// SubscriptionGate enforces the function quota of an organization. The usage
// methods run on the caller's transaction.
type SubscriptionGate interface {
	CheckLimit(ctx context.Context, orgID snowflake.ID) (LimitStatus, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error
	DecrementUsage(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error
}

var (
	ErrInvalidName  = apperr.Validation("invalid_name", "organization name must contain letters or digits")
	ErrInvalidID    = apperr.Validation("invalid_id", "organization id is invalid")
	ErrUnknownPlan  = apperr.Validation("unknown_plan", "plan is not in the catalog")
	ErrNotFound     = apperr.NotFound("organization_not_found", "organization not found")
	ErrNameTaken    = apperr.Conflict("org_name_taken", "organization name is already in use")
	ErrLimitReached = apperr.QuotaExceeded("function_limit_reached", "function limit of the current plan is reached")
)
