package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Function is a hosted event. Rows live in the tenant's {org}_functions table.
type Function struct {
	ID                      snowflake.ID                          `gorm:"primaryKey" json:"id"`
	FunctionID              string                                `gorm:"column:function_id;type:varchar(512);not null" json:"function_id"`
	FunctionName            string                                `gorm:"column:function_name;not null" json:"function_name"`
	FunctionOwnerName       string                                `gorm:"column:function_owner_name;not null" json:"function_owner_name"`
	FunctionOwnerCity       string                                `gorm:"column:function_owner_city" json:"function_owner_city"`
	FunctionOwnerOccupation string                                `gorm:"column:function_owner_occupation" json:"function_owner_occupation"`
	FunctionHeldPlace       string                                `gorm:"column:function_held_place" json:"function_held_place"`
	FunctionHeldCity        string                                `gorm:"column:function_held_city;not null" json:"function_held_city"`
	FunctionStartDate       string                                `gorm:"column:function_start_date;not null" json:"function_start_date"`
	FunctionStartTime       string                                `gorm:"column:function_start_time;not null" json:"function_start_time"`
	FunctionEndDate         string                                `gorm:"column:function_end_date" json:"function_end_date,omitempty"`
	FunctionEndTime         string                                `gorm:"column:function_end_time" json:"function_end_time,omitempty"`
	FunctionTotalDays       int                                   `gorm:"column:function_total_days;not null;default:1" json:"function_total_days"`
	FunctionBillDetails     datatypes.JSONType[BillDetails]       `gorm:"column:function_bill_details" json:"function_bill_details"`
	BillCustomization       datatypes.JSONType[BillCustomization] `gorm:"column:bill_customization" json:"bill_customization"`
	CreatedBy               string                                `gorm:"column:created_by" json:"created_by"`
	IsDeleted               bool                                  `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
	DeletedAt               *time.Time                            `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt               time.Time                             `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt               time.Time                             `gorm:"column:updated_at;not null" json:"updated_at"`
}

// BillDetails are the names and contact details printed on contribution bills.
type BillDetails struct {
	OwnerName    string `json:"owner_name,omitempty"`
	SpouseName   string `json:"spouse_name,omitempty"`
	OwnerAddress string `json:"owner_address,omitempty"`
	OwnerPhone   string `json:"owner_phone,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// BillCustomization is the embedded bill styling sub-document.
type BillCustomization struct {
	Logo     *Logo      `json:"logo,omitempty"`
	Ad       AdSettings `json:"ad_settings"`
	FontSize FontSizes  `json:"font_sizes"`
}

// Logo is a size and format validated base64 image.
type Logo struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

type AdSettings struct {
	Enabled  bool   `json:"enabled"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Footer   string `json:"footer"`
}

type FontSizes struct {
	Header int `json:"header"`
	Body   int `json:"body"`
	Footer int `json:"footer"`
}

const (
	DefaultAdTitle    = "Thank you for your blessings"
	DefaultAdSubtitle = "Your presence made our day special"
	DefaultAdFooter   = "Powered by moiledger"

	MaxLogoBytes = 1 << 20
)

// FontRange is the inclusive clamp applied to a font size.
type FontRange struct {
	Min     int
	Max     int
	Default int
}

var (
	HeaderFontRange = FontRange{Min: 12, Max: 48, Default: 24}
	BodyFontRange   = FontRange{Min: 8, Max: 24, Default: 12}
	FooterFontRange = FontRange{Min: 8, Max: 20, Default: 10}
)

// Clamp returns v bounded to the range, or the default when v is unset.
func (r FontRange) Clamp(v int) int {
	switch {
	case v == 0:
		return r.Default
	case v < r.Min:
		return r.Min
	case v > r.Max:
		return r.Max
	default:
		return v
	}
}

// DefaultBillCustomization returns the customization applied to new functions.
func DefaultBillCustomization() BillCustomization {
	return BillCustomization{
		Ad: AdSettings{
			Enabled:  true,
			Title:    DefaultAdTitle,
			Subtitle: DefaultAdSubtitle,
			Footer:   DefaultAdFooter,
		},
		FontSize: FontSizes{
			Header: HeaderFontRange.Default,
			Body:   BodyFontRange.Default,
			Footer: FooterFontRange.Default,
		},
	}
}
