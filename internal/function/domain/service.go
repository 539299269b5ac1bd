package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
)

type CreateFunctionRequest struct {
	FunctionName            string
	FunctionOwnerName       string
	FunctionOwnerCity       string
	FunctionOwnerOccupation string
	FunctionHeldPlace       string
	FunctionHeldCity        string
	FunctionStartDate       string
	FunctionStartTime       string
	FunctionEndDate         string
	FunctionEndTime         string
	FunctionTotalDays       int
	FunctionBillDetails     *BillDetails
	BillCustomization       *BillCustomizationPatch
}

// FunctionPatch lists the mutable fields of a function. FunctionID is accepted
// so decoded payloads round-trip, but it is never applied.
type FunctionPatch struct {
	FunctionID              *string                 `json:"function_id,omitempty"`
	FunctionName            *string                 `json:"function_name,omitempty"`
	FunctionOwnerName       *string                 `json:"function_owner_name,omitempty"`
	FunctionOwnerCity       *string                 `json:"function_owner_city,omitempty"`
	FunctionOwnerOccupation *string                 `json:"function_owner_occupation,omitempty"`
	FunctionHeldPlace       *string                 `json:"function_held_place,omitempty"`
	FunctionHeldCity        *string                 `json:"function_held_city,omitempty"`
	FunctionStartDate       *string                 `json:"function_start_date,omitempty"`
	FunctionStartTime       *string                 `json:"function_start_time,omitempty"`
	FunctionEndDate         *string                 `json:"function_end_date,omitempty"`
	FunctionEndTime         *string                 `json:"function_end_time,omitempty"`
	FunctionTotalDays       *int                    `json:"function_total_days,omitempty"`
	FunctionBillDetails     *BillDetails            `json:"function_bill_details,omitempty"`
	BillCustomization       *BillCustomizationPatch `json:"bill_customization,omitempty"`
}

type UpdateFunctionRequest struct {
	FunctionID    string
	ReasonForEdit string
	Changes       FunctionPatch
}

// LifecycleRequest targets a function for delete, restore or purge. Reason is
// optional; when present the transition is recorded in the edit log.
type LifecycleRequest struct {
	FunctionID string
	Reason     string
}

type ListFunctionRequest struct {
	PageToken   string
	PageSize    int
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListFunctionFilter struct {
	Deleted     bool
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListFunctionResponse struct {
	pagination.PageInfo
	Functions []Function `json:"functions"`
}

type Service interface {
	Create(context.Context, CreateFunctionRequest) (Function, error)
	Get(ctx context.Context, functionID string) (Function, error)
	List(context.Context, ListFunctionRequest) (ListFunctionResponse, error)
	ListDeleted(context.Context, ListFunctionRequest) (ListFunctionResponse, error)
	Update(context.Context, UpdateFunctionRequest) (Function, error)
	Delete(context.Context, LifecycleRequest) (Function, error)
	Restore(context.Context, LifecycleRequest) (Function, error)
	PermanentDelete(context.Context, LifecycleRequest) error
}

var (
	ErrInvalidOrganization = apperr.Configuration("missing_tenant", "organization is missing from context")
	ErrInvalidFunctionID   = apperr.Validation("invalid_function_id", "function_id is required")
	ErrMissingReason       = apperr.Validation("missing_reason", "reason_for_edit is required")
	ErrNotFound            = apperr.NotFound("function_not_found", "function not found")
	ErrDuplicate           = apperr.Conflict("duplicate_function", "a function with the same name, owner, city, date and time already exists")
	ErrAlreadyDeleted      = apperr.NotFound("function_deleted", "function is already deleted")
	ErrNotDeleted          = apperr.NotFound("function_not_deleted", "no deleted function with this function_id")
)
