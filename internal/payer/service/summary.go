package service

import (
	"context"
	"sort"

	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/denomination"
	"github.com/smallbiznis/moiledger/internal/payer/domain"
)

func (s *Service) activePayers(ctx context.Context, functionID string) ([]*domain.Payer, string, error) {
	h, err := s.open(ctx, false)
	if err != nil {
		return nil, "", err
	}
	fn, err := s.activeFunction(ctx, h, functionID)
	if err != nil {
		return nil, "", err
	}
	payers, err := s.repo.ListActiveByFunction(ctx, h.payers.DB(ctx), fn.FunctionID)
	if err != nil {
		return nil, "", apperr.Internal(err, "list payers of %s", fn.FunctionID)
	}
	return payers, fn.FunctionID, nil
}

// DenominationSummary folds the cash payers of a function into per-denomination
// received and returned counts.
func (s *Service) DenominationSummary(ctx context.Context, functionID string) (domain.DenominationSummary, error) {
	payers, functionID, err := s.activePayers(ctx, functionID)
	if err != nil {
		return domain.DenominationSummary{}, err
	}

	items := make([]denomination.Breakdown, 0, len(payers))
	for _, p := range payers {
		if p.IsCash() {
			items = append(items, p.Breakdown())
		}
	}
	summary, err := denomination.Summarize(items)
	if err != nil {
		return domain.DenominationSummary{}, err
	}
	return domain.DenominationSummary{
		FunctionID: functionID,
		Summary:    summary,
	}, nil
}

// PaymentMethodDistribution buckets cash payers by normalized payment method,
// largest amount first.
func (s *Service) PaymentMethodDistribution(ctx context.Context, functionID string) (domain.PaymentMethodDistribution, error) {
	payers, functionID, err := s.activePayers(ctx, functionID)
	if err != nil {
		return domain.PaymentMethodDistribution{}, err
	}

	buckets := map[string]*domain.MethodShare{}
	out := domain.PaymentMethodDistribution{FunctionID: functionID, Methods: []domain.MethodShare{}}
	for _, p := range payers {
		if !p.IsCash() {
			continue
		}
		method := domain.AggregationMethod(p.PayerCashMethod)
		share, ok := buckets[method]
		if !ok {
			share = &domain.MethodShare{Method: method}
			buckets[method] = share
		}
		share.Count++
		share.Amount += p.NetAmount
		out.CashPayers++
		out.CashAmount += p.NetAmount
	}

	for _, share := range buckets {
		out.Methods = append(out.Methods, *share)
	}
	sort.Slice(out.Methods, func(i, j int) bool {
		if out.Methods[i].Amount != out.Methods[j].Amount {
			return out.Methods[i].Amount > out.Methods[j].Amount
		}
		return out.Methods[i].Method < out.Methods[j].Method
	})
	return out, nil
}
