package domain

import (
	"strings"

	"github.com/smallbiznis/moiledger/internal/apperr"
)

const (
	GivenObjectCash = "Cash"

	MethodCash         = "Cash"
	MethodGPay         = "GPay"
	MethodGooglePay    = "Google Pay"
	MethodPhonePe      = "PhonePe"
	MethodPaytm        = "Paytm"
	MethodUPI          = "UPI"
	MethodBankTransfer = "Bank Transfer"
	MethodCheque       = "Cheque"
	MethodOther        = "Other"
)

var cashMethods = []string{
	MethodCash,
	MethodGPay,
	MethodGooglePay,
	MethodPhonePe,
	MethodPaytm,
	MethodUPI,
	MethodBankTransfer,
	MethodCheque,
	MethodOther,
}

var methodAliases = map[string]string{
	MethodGPay: MethodGooglePay,
}

// CashMethods lists the accepted payer_cash_method values.
func CashMethods() []string {
	out := make([]string, len(cashMethods))
	copy(out, cashMethods)
	return out
}

// CanonicalGivenObject maps any casing of "cash" to GivenObjectCash and keeps
// gift categories as entered.
func CanonicalGivenObject(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", apperr.Validation("missing_field", "payer_given_object is required")
	}
	if strings.EqualFold(value, GivenObjectCash) {
		return GivenObjectCash, nil
	}
	return value, nil
}

// CanonicalCashMethod matches raw case-insensitively against the accepted
// methods. An empty method is allowed and stored empty.
func CanonicalCashMethod(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	for _, method := range cashMethods {
		if strings.EqualFold(value, method) {
			return method, nil
		}
	}
	return "", apperr.Validation("invalid_cash_method", "payer_cash_method %q is not one of %s", raw, strings.Join(cashMethods, ", "))
}

// AggregationMethod is the category a stored method is counted under.
func AggregationMethod(stored string) string {
	method, err := CanonicalCashMethod(stored)
	if err != nil || method == "" {
		return MethodOther
	}
	if alias, ok := methodAliases[method]; ok {
		return alias
	}
	return method
}
