package domain

import (
	"testing"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalCashMethod(t *testing.T) {
	method, err := CanonicalCashMethod("  bank transfer ")
	require.NoError(t, err)
	assert.Equal(t, MethodBankTransfer, method)

	method, err = CanonicalCashMethod("")
	require.NoError(t, err)
	assert.Empty(t, method)

	_, err = CanonicalCashMethod("barter")
	assert.Equal(t, "invalid_cash_method", apperr.CodeOf(err))
}

func TestAggregationMethod(t *testing.T) {
	cases := map[string]string{
		"":           MethodOther,
		"GPay":       MethodGooglePay,
		"gpay":       MethodGooglePay,
		"Google Pay": MethodGooglePay,
		"UPI":        MethodUPI,
		"seashells":  MethodOther,
	}
	for input, want := range cases {
		assert.Equal(t, want, AggregationMethod(input), input)
	}
}

func TestCanonicalGivenObject(t *testing.T) {
	object, err := CanonicalGivenObject("CASH")
	require.NoError(t, err)
	assert.Equal(t, GivenObjectCash, object)

	object, err = CanonicalGivenObject("Gold Ring")
	require.NoError(t, err)
	assert.Equal(t, "Gold Ring", object)

	_, err = CanonicalGivenObject(" ")
	assert.Error(t, err)
}
