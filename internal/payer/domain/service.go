package domain

import (
	"context"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/denomination"
	"github.com/smallbiznis/moiledger/pkg/db/pagination"
)

type CreatePayerRequest struct {
	FunctionID            string
	PayerName             string
	PayerPhno             string
	PayerWork             string
	PayerCity             string
	PayerRelation         string
	PayerGivenObject      string
	PayerCashMethod       string
	PayerGiftName         string
	PayerAmount           *int64
	DenominationsReceived denomination.Counts
	DenominationsReturned denomination.Counts
}

// PayerPatch lists the mutable fields of a payer. Nil denomination maps mean
// the update carries no itemization.
type PayerPatch struct {
	PayerName             *string             `json:"payer_name,omitempty"`
	PayerPhno             *string             `json:"payer_phno,omitempty"`
	PayerWork             *string             `json:"payer_work,omitempty"`
	PayerCity             *string             `json:"payer_city,omitempty"`
	PayerRelation         *string             `json:"payer_relation,omitempty"`
	PayerGivenObject      *string             `json:"payer_given_object,omitempty"`
	PayerCashMethod       *string             `json:"payer_cash_method,omitempty"`
	PayerGiftName         *string             `json:"payer_gift_name,omitempty"`
	PayerAmount           *int64              `json:"payer_amount,omitempty"`
	DenominationsReceived denomination.Counts `json:"denominations_received,omitempty"`
	DenominationsReturned denomination.Counts `json:"denominations_returned,omitempty"`
}

type UpdatePayerRequest struct {
	PayerID       string
	ReasonForEdit string
	Changes       PayerPatch
}

// LifecycleRequest targets a payer for delete, restore or purge.
type LifecycleRequest struct {
	PayerID string
	Reason  string
}

type ListPayerRequest struct {
	FunctionID string
	PageToken  string
	PageSize   int
	Search     string
}

type ListPayerFilter struct {
	FunctionID string
	Deleted    bool
	Search     string
}

type ListPayerResponse struct {
	pagination.PageInfo
	Payers []Payer `json:"payers"`
}

type DenominationSummary struct {
	FunctionID string `json:"function_id"`
	denomination.Summary
}

// MethodShare is one bucket of the payment method distribution.
type MethodShare struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
	Amount int64  `json:"amount"`
}

type PaymentMethodDistribution struct {
	FunctionID string        `json:"function_id"`
	Methods    []MethodShare `json:"methods"`
	CashPayers int           `json:"cash_payers"`
	CashAmount int64         `json:"cash_amount"`
}

type SearchProfilesRequest struct {
	Query string
	Limit int
}

type Service interface {
	Create(context.Context, CreatePayerRequest) (Payer, error)
	Get(ctx context.Context, payerID string) (Payer, error)
	ListByFunction(context.Context, ListPayerRequest) (ListPayerResponse, error)
	ListDeleted(context.Context, ListPayerRequest) (ListPayerResponse, error)
	Update(context.Context, UpdatePayerRequest) (Payer, error)
	Delete(context.Context, LifecycleRequest) (Payer, error)
	Restore(context.Context, LifecycleRequest) (Payer, error)
	PermanentDelete(context.Context, LifecycleRequest) error
	DenominationSummary(ctx context.Context, functionID string) (DenominationSummary, error)
	PaymentMethodDistribution(ctx context.Context, functionID string) (PaymentMethodDistribution, error)
	SearchProfiles(context.Context, SearchProfilesRequest) ([]PayerProfile, error)
}

var (
	ErrInvalidOrganization = apperr.Configuration("missing_tenant", "organization is missing from context")
	ErrInvalidID           = apperr.Validation("invalid_id", "payer id is invalid")
	ErrInvalidName         = apperr.Validation("invalid_name", "payer_name is required")
	ErrMissingFunction     = apperr.Validation("missing_field", "function_id is required")
	ErrMissingReason       = apperr.Validation("missing_reason", "reason_for_edit is required")
	ErrFunctionNotFound    = apperr.NotFound("function_not_found", "function not found or deleted")
	ErrNotFound            = apperr.NotFound("payer_not_found", "payer not found")
	ErrAlreadyDeleted      = apperr.NotFound("payer_deleted", "payer is already deleted")
	ErrNotDeleted          = apperr.NotFound("payer_not_deleted", "no deleted payer with this id")
	ErrDuplicatePhone      = apperr.Conflict("duplicate_phone", "another payer of this function already uses this phone number")
)
