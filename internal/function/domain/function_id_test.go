package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFunctionIDIsDeterministic(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	first, err := BuildFunctionID("Wedding", "A B", "City", date, "10:00 AM")
	require.NoError(t, err)
	second, err := BuildFunctionID("Wedding", "A B", "City", date, "10:00 AM")
	require.NoError(t, err)

	assert.Equal(t, "wedding-a_b-city-2025-06-15-10:00_am", first)
	assert.Equal(t, first, second)
}

func TestBuildFunctionIDDiffersPerComponent(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	base, err := BuildFunctionID("Wedding", "A B", "City", date, "10:00 AM")
	require.NoError(t, err)

	variants := [][]any{
		{"Reception", "A B", "City", date, "10:00 AM"},
		{"Wedding", "A C", "City", date, "10:00 AM"},
		{"Wedding", "A B", "Town", date, "10:00 AM"},
		{"Wedding", "A B", "City", date.AddDate(0, 0, 1), "10:00 AM"},
		{"Wedding", "A B", "City", date, "11:00 AM"},
	}
	for _, v := range variants {
		id, err := BuildFunctionID(v[0].(string), v[1].(string), v[2].(string), v[3].(time.Time), v[4].(string))
		require.NoError(t, err)
		assert.NotEqual(t, base, id)
	}
}

func TestBuildFunctionIDCollapsesWhitespace(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	id, err := BuildFunctionID("  Grand   Wedding ", "A\tB", "New York", date, "10:00 AM")
	require.NoError(t, err)
	assert.Equal(t, "grand_wedding-a_b-new_york-2025-06-15-10:00_am", id)
}

func TestBuildFunctionIDRequiresEveryComponent(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	_, err := BuildFunctionID("Wedding", "", "City", date, "10:00 AM")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = BuildFunctionID("Wedding", "A B", "City", time.Time{}, "10:00 AM")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestParseStartDate(t *testing.T) {
	d, err := ParseStartDate("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", d.Format(ISODate))

	d, err = ParseStartDate("2025-06-15T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", d.Format(ISODate))

	_, err = ParseStartDate("15/06/2025")
	assert.Equal(t, "invalid_date", apperr.CodeOf(err))
}
