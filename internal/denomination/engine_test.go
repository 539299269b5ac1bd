package denomination

import (
	"errors"
	"math"
	"testing"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *int64 { return &v }

func TestComputeTotals(t *testing.T) {
	totals, err := ComputeTotals(Counts{"500": 2, "100": 1}, Counts{"50": 1, "2000": 0})
	require.NoError(t, err)

	assert.Equal(t, int64(1100), totals.TotalReceived)
	assert.Equal(t, int64(50), totals.TotalReturned)
	assert.Equal(t, int64(1050), totals.NetAmount)
}

func TestNormalizePrunesZeroAndRejectsUnknown(t *testing.T) {
	normalized, err := Normalize(Counts{"500": 0, " 100 ": 3})
	require.NoError(t, err)
	assert.Equal(t, Counts{"100": 3}, normalized)

	_, err = Normalize(Counts{"300": 1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = Normalize(Counts{"abc": 1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = Normalize(Counts{"10": -1})
	assert.Equal(t, "invalid_denomination_count", apperr.CodeOf(err))
}

func TestForCreate(t *testing.T) {
	tests := []struct {
		name     string
		received Counts
		returned Counts
		declared *int64
		want     Breakdown
		code     string
	}{
		{
			name:     "itemized without declared amount",
			received: Counts{"500": 2, "100": 1},
			want: Breakdown{
				Received: Counts{"500": 2, "100": 1},
				Returned: Counts{},
				Totals:   Totals{TotalReceived: 1100, TotalReturned: 0, NetAmount: 1100},
				Amount:   1100,
			},
		},
		{
			name:     "itemized matching declared amount",
			received: Counts{"2000": 1},
			returned: Counts{"500": 1, "200": 2},
			declared: amount(1100),
			want: Breakdown{
				Received: Counts{"2000": 1},
				Returned: Counts{"500": 1, "200": 2},
				Totals:   Totals{TotalReceived: 2000, TotalReturned: 900, NetAmount: 1100},
				Amount:   1100,
			},
		},
		{
			name:     "mismatch is rejected",
			received: Counts{"500": 2},
			declared: amount(1001),
			code:     "denomination_mismatch",
		},
		{
			name:     "bare amount",
			declared: amount(501),
			want: Breakdown{
				Received: Counts{},
				Returned: Counts{},
				Totals:   Totals{TotalReceived: 501, TotalReturned: 0, NetAmount: 501},
				Amount:   501,
			},
		},
		{
			name: "nothing supplied",
			code: "missing_amount",
		},
		{
			name:     "only zero counts behaves as bare",
			received: Counts{"100": 0},
			declared: amount(100),
			want: Breakdown{
				Received: Counts{},
				Returned: Counts{},
				Totals:   Totals{TotalReceived: 100, NetAmount: 100},
				Amount:   100,
			},
		},
		{
			name:     "returned exceeds received",
			received: Counts{"100": 1},
			returned: Counts{"200": 1},
			code:     "negative_net_amount",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ForCreate(tc.received, tc.returned, tc.declared)
			if tc.code != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				assert.Equal(t, tc.code, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestForCreateMismatchNamesBothAmounts(t *testing.T) {
	_, err := ForCreate(Counts{"500": 2}, nil, amount(900))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1000")
	assert.Contains(t, err.Error(), "900")
}

func TestForUpdateRecomputesFromScratch(t *testing.T) {
	got, err := ForUpdate(Counts{"100": 1}, nil, 1100)
	require.NoError(t, err)

	assert.Equal(t, Counts{"100": 1}, got.Received)
	assert.Equal(t, Counts{}, got.Returned)
	assert.Equal(t, int64(100), got.TotalReceived)
	assert.Equal(t, int64(100), got.NetAmount)
	assert.Equal(t, int64(100), got.Amount)
}

func TestForUpdateBareAmountClearsItemization(t *testing.T) {
	got, err := ForUpdate(nil, nil, 750)
	require.NoError(t, err)

	assert.False(t, got.Itemized())
	assert.Equal(t, Counts{}, got.Received)
	assert.Equal(t, Counts{}, got.Returned)
	assert.Equal(t, Totals{TotalReceived: 750, TotalReturned: 0, NetAmount: 750}, got.Totals)
	assert.Equal(t, int64(750), got.Amount)
}

func TestSummarize(t *testing.T) {
	a, err := ForCreate(Counts{"500": 2, "100": 1}, nil, nil)
	require.NoError(t, err)
	b, err := ForCreate(Counts{"500": 1}, Counts{"100": 2}, nil)
	require.NoError(t, err)
	c, err := ForCreate(nil, nil, amount(250))
	require.NoError(t, err)

	summary, err := Summarize([]Breakdown{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ItemizedPayers)
	assert.Equal(t, 1, summary.BarePayers)
	assert.Equal(t, int64(250), summary.BareAmount)
	assert.Equal(t, int64(1600), summary.TotalReceived)
	assert.Equal(t, int64(200), summary.TotalReturned)
	assert.Equal(t, int64(1400), summary.NetAmount)
	assert.Equal(t, []Line{
		{FaceValue: 500, Received: 3, Returned: 0, Net: 3, Amount: 1500},
		{FaceValue: 100, Received: 1, Returned: 2, Net: -1, Amount: -100},
	}, summary.Lines)
}

func TestOverflowingAmountsAreRejected(t *testing.T) {
	cases := []struct {
		name     string
		received Counts
		returned Counts
	}{
		{"count times face value", Counts{"2000": math.MaxInt64 / 1000}, nil},
		{"running sum", Counts{"1": math.MaxInt64, "2": 1}, Counts{"2": 1}},
		{"returned total", Counts{"1": 1}, Counts{"1": math.MaxInt64, "5": 1}},
		{"merged keys", Counts{"1": math.MaxInt64, " 1": 1}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ForCreate(tc.received, tc.returned, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Equal(t, "amount_overflow", apperr.CodeOf(err))

			_, err = ForUpdate(tc.received, tc.returned, 0)
			assert.Equal(t, "amount_overflow", apperr.CodeOf(err))
		})
	}
}

func TestLargestRepresentableAmountIsAccepted(t *testing.T) {
	b, err := ForCreate(Counts{"1": math.MaxInt64}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), b.NetAmount)
	assert.Equal(t, int64(math.MaxInt64), b.Amount)
}

func TestSummarizeRejectsOverflow(t *testing.T) {
	a, err := ForCreate(Counts{"1": math.MaxInt64}, nil, nil)
	require.NoError(t, err)
	b, err := ForCreate(Counts{"1": 1}, nil, nil)
	require.NoError(t, err)

	_, err = Summarize([]Breakdown{a, b})
	assert.Equal(t, "amount_overflow", apperr.CodeOf(err))
}
