package domain

import (
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/smallbiznis/moiledger/internal/apperr"
)

var allowedLogoTypes = []string{"image/png", "image/jpeg", "image/webp"}

// BillCustomizationPatch carries the fields a caller wants to change. Nil
// fields keep their current value; an empty Logo removes the logo.
type BillCustomizationPatch struct {
	Logo           *string `json:"logo,omitempty"`
	AdEnabled      *bool   `json:"ad_enabled,omitempty"`
	AdTitle        *string `json:"ad_title,omitempty"`
	AdSubtitle     *string `json:"ad_subtitle,omitempty"`
	AdFooter       *string `json:"ad_footer,omitempty"`
	HeaderFontSize *int    `json:"header_font_size,omitempty"`
	BodyFontSize   *int    `json:"body_font_size,omitempty"`
	FooterFontSize *int    `json:"footer_font_size,omitempty"`
}

// ApplyTo merges the patch into base, validating the logo and clamping font sizes.
func (p BillCustomizationPatch) ApplyTo(base BillCustomization) (BillCustomization, error) {
	out := base

	if p.Logo != nil {
		if strings.TrimSpace(*p.Logo) == "" {
			out.Logo = nil
		} else {
			logo, err := DecodeLogo(*p.Logo)
			if err != nil {
				return BillCustomization{}, err
			}
			out.Logo = logo
		}
	}

	if p.AdEnabled != nil {
		out.Ad.Enabled = *p.AdEnabled
	}
	if p.AdTitle != nil {
		out.Ad.Title = strings.TrimSpace(*p.AdTitle)
	}
	if p.AdSubtitle != nil {
		out.Ad.Subtitle = strings.TrimSpace(*p.AdSubtitle)
	}
	if p.AdFooter != nil {
		out.Ad.Footer = strings.TrimSpace(*p.AdFooter)
	}

	if p.HeaderFontSize != nil {
		out.FontSize.Header = *p.HeaderFontSize
	}
	if p.BodyFontSize != nil {
		out.FontSize.Body = *p.BodyFontSize
	}
	if p.FooterFontSize != nil {
		out.FontSize.Footer = *p.FooterFontSize
	}
	out.FontSize = out.FontSize.Clamped()

	return out, nil
}

// Clamped bounds every size to its range.
func (f FontSizes) Clamped() FontSizes {
	return FontSizes{
		Header: HeaderFontRange.Clamp(f.Header),
		Body:   BodyFontRange.Clamp(f.Body),
		Footer: FooterFontRange.Clamp(f.Footer),
	}
}

// DecodeLogo accepts raw base64 or a data URL and returns the validated logo.
func DecodeLogo(encoded string) (*Logo, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, apperr.Validation("invalid_logo", "logo data URL has no payload")
		}
		payload = payload[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.Validation("invalid_logo", "logo is not valid base64")
	}
	if len(raw) == 0 {
		return nil, apperr.Validation("invalid_logo", "logo is empty")
	}
	if len(raw) > MaxLogoBytes {
		return nil, apperr.Validation("logo_too_large", "logo is %d bytes, limit is %d", len(raw), MaxLogoBytes)
	}

	mtype := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mtype.String(), allowedLogoTypes...) {
		return nil, apperr.Validation("unsupported_logo_format", "logo format %s is not supported", mtype.String())
	}

	return &Logo{
		Data:     payload,
		MimeType: mtype.String(),
		Size:     len(raw),
	}, nil
}
