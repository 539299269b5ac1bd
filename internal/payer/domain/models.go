package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/denomination"
	"gorm.io/datatypes"
)

// Payer is a contribution to a function. Rows live in the tenant's {org}_payers table.
type Payer struct {
	ID                    snowflake.ID                            `gorm:"primaryKey" json:"id"`
	FunctionID            string                                  `gorm:"column:function_id;type:varchar(512);not null" json:"function_id"`
	PayerName             string                                  `gorm:"column:payer_name;size:191;not null" json:"payer_name"`
	PayerPhno             string                                  `gorm:"column:payer_phno;size:64" json:"payer_phno,omitempty"`
	PayerWork             string                                  `gorm:"column:payer_work" json:"payer_work,omitempty"`
	PayerCity             string                                  `gorm:"column:payer_city" json:"payer_city,omitempty"`
	PayerRelation         string                                  `gorm:"column:payer_relation" json:"payer_relation,omitempty"`
	PayerGivenObject      string                                  `gorm:"column:payer_given_object;not null" json:"payer_given_object"`
	PayerCashMethod       string                                  `gorm:"column:payer_cash_method" json:"payer_cash_method,omitempty"`
	PayerGiftName         string                                  `gorm:"column:payer_gift_name" json:"payer_gift_name,omitempty"`
	PayerAmount           int64                                   `gorm:"column:payer_amount;not null;default:0" json:"payer_amount"`
	DenominationsReceived datatypes.JSONType[denomination.Counts] `gorm:"column:denominations_received" json:"denominations_received"`
	DenominationsReturned datatypes.JSONType[denomination.Counts] `gorm:"column:denominations_returned" json:"denominations_returned"`
	TotalReceived         int64                                   `gorm:"column:total_received;not null;default:0" json:"total_received"`
	TotalReturned         int64                                   `gorm:"column:total_returned;not null;default:0" json:"total_returned"`
	NetAmount             int64                                   `gorm:"column:net_amount;not null;default:0" json:"net_amount"`
	CreatedBy             string                                  `gorm:"column:created_by" json:"created_by"`
	IsDeleted             bool                                    `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
	DeletedAt             *time.Time                              `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt             time.Time                               `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt             time.Time                               `gorm:"column:updated_at;not null" json:"updated_at"`
}

// IsCash reports whether the payer contributed money rather than a gift.
func (p Payer) IsCash() bool {
	return p.PayerGivenObject == GivenObjectCash
}

// Breakdown returns the persisted denomination state of the payer.
func (p Payer) Breakdown() denomination.Breakdown {
	return denomination.Breakdown{
		Received: p.DenominationsReceived.Data(),
		Returned: p.DenominationsReturned.Data(),
		Totals: denomination.Totals{
			TotalReceived: p.TotalReceived,
			TotalReturned: p.TotalReturned,
			NetAmount:     p.NetAmount,
		},
		Amount: p.PayerAmount,
	}
}

// ApplyBreakdown overwrites every denomination-derived field.
func (p *Payer) ApplyBreakdown(b denomination.Breakdown) {
	received, returned := b.Received, b.Returned
	if received == nil {
		received = denomination.Counts{}
	}
	if returned == nil {
		returned = denomination.Counts{}
	}
	p.DenominationsReceived = datatypes.NewJSONType(received)
	p.DenominationsReturned = datatypes.NewJSONType(returned)
	p.TotalReceived = b.TotalReceived
	p.TotalReturned = b.TotalReturned
	p.NetAmount = b.NetAmount
	p.PayerAmount = b.Amount
}

// ClearCash resets the cash fields of a gift payer.
func (p *Payer) ClearCash() {
	amount := p.PayerAmount
	p.ApplyBreakdown(denomination.Breakdown{})
	p.PayerAmount = amount
	p.PayerCashMethod = ""
}

// PayerProfile remembers a contributor across functions. Rows live in the
// tenant's {org}_payer_profiles table, keyed by (payer_name, payer_phno).
type PayerProfile struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	PayerName         string       `gorm:"column:payer_name;size:191;not null" json:"payer_name"`
	PayerPhno         string       `gorm:"column:payer_phno;size:64;not null;default:''" json:"payer_phno"`
	PayerWork         string       `gorm:"column:payer_work" json:"payer_work,omitempty"`
	PayerCity         string       `gorm:"column:payer_city" json:"payer_city,omitempty"`
	PayerRelation     string       `gorm:"column:payer_relation" json:"payer_relation,omitempty"`
	LastFunctionID    string       `gorm:"column:last_function_id" json:"last_function_id,omitempty"`
	ContributionCount int64        `gorm:"column:contribution_count;not null;default:0" json:"contribution_count"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"column:updated_at;not null" json:"updated_at"`
}
