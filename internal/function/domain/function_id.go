package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/moiledger/internal/apperr"
)

// ISODate is the layout of function_start_date.
const ISODate = "2006-01-02"

// BuildFunctionID derives the human-readable, tenant-unique function_id from
// name, owner name, held city, start date and start time.
func BuildFunctionID(name, ownerName, heldCity string, startDate time.Time, startTime string) (string, error) {
	parts := []struct {
		field string
		value string
	}{
		{"function_name", name},
		{"function_owner_name", ownerName},
		{"function_held_city", heldCity},
		{"function_start_time", startTime},
	}
	for _, p := range parts {
		if strings.TrimSpace(p.value) == "" {
			return "", apperr.Validation("missing_field", "%s is required", p.field)
		}
	}
	if startDate.IsZero() {
		return "", apperr.Validation("missing_field", "function_start_date is required")
	}

	return strings.Join([]string{
		normalizeComponent(name),
		normalizeComponent(ownerName),
		normalizeComponent(heldCity),
		startDate.Format(ISODate),
		normalizeComponent(startTime),
	}, "-"), nil
}

// ParseStartDate accepts an ISO date or an RFC 3339 timestamp.
func ParseStartDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.Validation("missing_field", "function_start_date is required")
	}
	if t, err := time.Parse(ISODate, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid_date", "function_start_date %q is not an ISO date", raw)
	}
	return t.UTC(), nil
}

func normalizeComponent(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), "_"))
}
