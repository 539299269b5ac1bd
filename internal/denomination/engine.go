// Package denomination reconciles multi-denomination cash counts into
// received, returned and net totals.
package denomination

import (
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/moiledger/internal/apperr"
)

// FaceValues is the fixed denomination set, highest first.
var FaceValues = []int64{2000, 500, 200, 100, 50, 20, 10, 5, 2, 1}

var faceValueSet = func() map[int64]struct{} {
	set := make(map[int64]struct{}, len(FaceValues))
	for _, v := range FaceValues {
		set[v] = struct{}{}
	}
	return set
}()

// Counts maps a face value ("500") to the number of notes or coins.
type Counts map[string]int64

// Totals are the canonical amounts derived from a received/returned pair.
type Totals struct {
	TotalReceived int64 `json:"total_received"`
	TotalReturned int64 `json:"total_returned"`
	NetAmount     int64 `json:"net_amount"`
}

// Breakdown is the full result persisted on a cash payer.
type Breakdown struct {
	Received Counts `json:"denominations_received"`
	Returned Counts `json:"denominations_returned"`
	Totals
	// Amount is the payer_amount to persist.
	Amount int64 `json:"payer_amount"`
}

// Itemized reports whether the breakdown carries any denomination counts.
func (b Breakdown) Itemized() bool {
	return len(b.Received) > 0 || len(b.Returned) > 0
}

// Normalize validates keys and counts and drops zero entries. The result is
// never nil.
func Normalize(counts Counts) (Counts, error) {
	out := make(Counts, len(counts))
	for rawKey, count := range counts {
		key := strings.TrimSpace(rawKey)
		value, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, apperr.Validation("invalid_denomination", "denomination %q is not a number", rawKey)
		}
		if _, ok := faceValueSet[value]; !ok {
			return nil, apperr.Validation("invalid_denomination", "denomination %d is not a supported face value", value)
		}
		if count < 0 {
			return nil, apperr.Validation("invalid_denomination_count", "denomination %d has negative count %d", value, count)
		}
		if count == 0 {
			continue
		}
		if count > math.MaxInt64/value {
			return nil, errOverflow("denomination %d count %d", value, count)
		}
		canonical := strconv.FormatInt(value, 10)
		merged, err := addAmount(out[canonical], count)
		if err != nil {
			return nil, err
		}
		out[canonical] = merged
	}
	return out, nil
}

// Total sums face value * count. Missing denominations count as zero.
func Total(counts Counts) (int64, error) {
	normalized, err := Normalize(counts)
	if err != nil {
		return 0, err
	}
	var total int64
	for key, count := range normalized {
		value, _ := strconv.ParseInt(key, 10, 64)
		subtotal, err := mulAmount(value, count)
		if err != nil {
			return 0, err
		}
		if total, err = addAmount(total, subtotal); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// ComputeTotals derives received, returned and net totals.
func ComputeTotals(received, returned Counts) (Totals, error) {
	totalReceived, err := Total(received)
	if err != nil {
		return Totals{}, err
	}
	totalReturned, err := Total(returned)
	if err != nil {
		return Totals{}, err
	}
	net, err := subAmount(totalReceived, totalReturned)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		TotalReceived: totalReceived,
		TotalReturned: totalReturned,
		NetAmount:     net,
	}, nil
}

func errOverflow(format string, args ...any) error {
	return apperr.Validation("amount_overflow", "amount overflows: "+format, args...)
}

func addAmount(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errOverflow("%d + %d", a, b)
	}
	return a + b, nil
}

func subAmount(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, errOverflow("%d - %d", a, b)
	}
	return a - b, nil
}

// mulAmount multiplies a positive face value by a signed count.
func mulAmount(value, count int64) (int64, error) {
	if count > math.MaxInt64/value || count < math.MinInt64/value {
		return 0, errOverflow("%d * %d", value, count)
	}
	return value * count, nil
}

// ForCreate applies the create-path contract: denominations, when supplied,
// must agree with a declared amount; a mismatch is rejected, never corrected.
func ForCreate(received, returned Counts, declared *int64) (Breakdown, error) {
	b, err := itemize(received, returned)
	if err != nil {
		return Breakdown{}, err
	}

	if !b.Itemized() {
		if declared == nil {
			return Breakdown{}, apperr.Validation("missing_amount", "payer_amount is required when no denominations are given")
		}
		return bare(*declared)
	}

	if declared != nil && *declared != b.NetAmount {
		return Breakdown{}, apperr.Validation("denomination_mismatch",
			"denomination/amount mismatch: denominations total %d but payer_amount is %d", b.NetAmount, *declared)
	}
	b.Amount = b.NetAmount
	return b, nil
}

// ForUpdate applies the update-path contract: totals are recomputed from the
// supplied maps only and the amount is overwritten with the net. Without maps
// the itemization is cleared and amount becomes the net.
func ForUpdate(received, returned Counts, amount int64) (Breakdown, error) {
	b, err := itemize(received, returned)
	if err != nil {
		return Breakdown{}, err
	}
	if !b.Itemized() {
		return bare(amount)
	}
	b.Amount = b.NetAmount
	return b, nil
}

func itemize(received, returned Counts) (Breakdown, error) {
	recv, err := Normalize(received)
	if err != nil {
		return Breakdown{}, err
	}
	ret, err := Normalize(returned)
	if err != nil {
		return Breakdown{}, err
	}
	totals, err := ComputeTotals(recv, ret)
	if err != nil {
		return Breakdown{}, err
	}
	if totals.NetAmount < 0 {
		return Breakdown{}, apperr.Validation("negative_net_amount",
			"returned total %d exceeds received total %d", totals.TotalReturned, totals.TotalReceived)
	}
	return Breakdown{Received: recv, Returned: ret, Totals: totals}, nil
}

func bare(amount int64) (Breakdown, error) {
	if amount < 0 {
		return Breakdown{}, apperr.Validation("invalid_amount", "payer_amount %d must not be negative", amount)
	}
	return Breakdown{
		Received: Counts{},
		Returned: Counts{},
		Totals: Totals{
			TotalReceived: amount,
			TotalReturned: 0,
			NetAmount:     amount,
		},
		Amount: amount,
	}, nil
}

// Line is one row of a denomination summary.
type Line struct {
	FaceValue int64 `json:"denomination"`
	Received  int64 `json:"received"`
	Returned  int64 `json:"returned"`
	Net       int64 `json:"net"`
	Amount    int64 `json:"amount"`
}

// Summary aggregates cash-in-hand across many payers.
type Summary struct {
	Lines []Line `json:"denominations"`
	Totals
	ItemizedPayers int `json:"itemized_payers"`
	BarePayers     int `json:"bare_payers"`
	// BareAmount is cash recorded without an itemized count.
	BareAmount int64 `json:"bare_amount"`
}

// Summarize folds breakdowns into per-denomination lines ordered by face value, highest first.
func Summarize(items []Breakdown) (Summary, error) {
	received := map[int64]int64{}
	returned := map[int64]int64{}
	var summary Summary

	fold := func(into map[int64]int64, counts Counts) error {
		for key, count := range counts {
			value, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			if into[value], err = addAmount(into[value], count); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	for _, item := range items {
		if !item.Itemized() {
			summary.BarePayers++
			if summary.BareAmount, err = addAmount(summary.BareAmount, item.Amount); err != nil {
				return Summary{}, err
			}
			continue
		}
		summary.ItemizedPayers++
		if err := fold(received, item.Received); err != nil {
			return Summary{}, err
		}
		if err := fold(returned, item.Returned); err != nil {
			return Summary{}, err
		}
		if summary.TotalReceived, err = addAmount(summary.TotalReceived, item.TotalReceived); err != nil {
			return Summary{}, err
		}
		if summary.TotalReturned, err = addAmount(summary.TotalReturned, item.TotalReturned); err != nil {
			return Summary{}, err
		}
		if summary.NetAmount, err = addAmount(summary.NetAmount, item.NetAmount); err != nil {
			return Summary{}, err
		}
	}

	for _, value := range FaceValues {
		in, out := received[value], returned[value]
		if in == 0 && out == 0 {
			continue
		}
		net, err := subAmount(in, out)
		if err != nil {
			return Summary{}, err
		}
		lineAmount, err := mulAmount(value, net)
		if err != nil {
			return Summary{}, err
		}
		summary.Lines = append(summary.Lines, Line{
			FaceValue: value,
			Received:  in,
			Returned:  out,
			Net:       net,
			Amount:    lineAmount,
		})
	}
	return summary, nil
}
