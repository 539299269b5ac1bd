package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/denomination"
	editlogdomain "github.com/smallbiznis/moiledger/internal/editlog/domain"
	editlogrepository "github.com/smallbiznis/moiledger/internal/editlog/repository"
	editlogservice "github.com/smallbiznis/moiledger/internal/editlog/service"
	functiondomain "github.com/smallbiznis/moiledger/internal/function/domain"
	functionrepository "github.com/smallbiznis/moiledger/internal/function/repository"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/smallbiznis/moiledger/internal/orgcontext"
	"github.com/smallbiznis/moiledger/internal/payer/domain"
	"github.com/smallbiznis/moiledger/internal/payer/repository"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	editLogs editlogdomain.Service
	resolver *tenant.Resolver
	node     *snowflake.Node
	clock    *clock.FakeClock
	ctx      context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	registry, err := tenant.NewRegistry()
	require.NoError(t, err)

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	resolver := tenant.NewResolver(conn, registry, log)

	editLogs := editlogservice.New(editlogservice.Params{
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Resolver: resolver,
		Repo:     editlogrepository.Provide(),
	})
	svc := New(Params{
		Log:       log,
		DB:        conn,
		GenID:     node,
		Clock:     clk,
		Resolver:  resolver,
		Repo:      repository.Provide(),
		Profiles:  repository.ProvideProfiles(),
		Functions: functionrepository.Provide(),
		EditLogs:  editLogs,
		Metrics:   metrics.NewNop(),
	})

	ctx := orgcontext.WithAuth(context.Background(), orgcontext.AuthContext{
		OrgID:    node.Generate(),
		OrgName:  "acme",
		UserID:   "u-1",
		Username: "priya",
	})
	return fixture{
		db:       conn,
		svc:      svc,
		editLogs: editLogs,
		resolver: resolver,
		node:     node,
		clock:    clk,
		ctx:      ctx,
	}
}

func (f fixture) addFunction(t *testing.T, functionID string, deleted bool) {
	t.Helper()

	h, err := f.resolver.Open(f.ctx, "acme", tenant.KindFunctions)
	require.NoError(t, err)
	fn := functiondomain.Function{
		ID:                  f.node.Generate(),
		FunctionID:          functionID,
		FunctionName:        "Wedding",
		FunctionOwnerName:   "A B",
		FunctionHeldCity:    "City",
		FunctionStartDate:   "2025-06-15",
		FunctionStartTime:   "10:00 AM",
		FunctionTotalDays:   1,
		FunctionBillDetails: datatypes.NewJSONType(functiondomain.BillDetails{}),
		BillCustomization:   datatypes.NewJSONType(functiondomain.DefaultBillCustomization()),
		IsDeleted:           deleted,
		CreatedAt:           f.clock.Now(),
		UpdatedAt:           f.clock.Now(),
	}
	require.NoError(t, h.DB(f.ctx).Create(&fn).Error)
}

func (f fixture) payerRows(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Table("acme_payers").Count(&count).Error)
	return count
}

func amount(v int64) *int64 { return &v }

func ptr[T any](v T) *T { return &v }

func cashRequest(functionID string) domain.CreatePayerRequest {
	return domain.CreatePayerRequest{
		FunctionID:       functionID,
		PayerName:        "Ravi",
		PayerPhno:        "9876543210",
		PayerCity:        "Madurai",
		PayerGivenObject: "cash",
		PayerCashMethod:  "gpay",
	}
}

func TestCreateItemizedCashWithoutAmount(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"500": 2, "100": 1}
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.GivenObjectCash, payer.PayerGivenObject)
	assert.Equal(t, domain.MethodGPay, payer.PayerCashMethod)
	assert.EqualValues(t, 1100, payer.TotalReceived)
	assert.EqualValues(t, 0, payer.TotalReturned)
	assert.EqualValues(t, 1100, payer.NetAmount)
	assert.EqualValues(t, 1100, payer.PayerAmount)

	stored, err := f.svc.Get(f.ctx, payer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, denomination.Counts{"500": 2, "100": 1}, stored.DenominationsReceived.Data())
	assert.Empty(t, stored.DenominationsReturned.Data())
	assert.EqualValues(t, 1100, stored.NetAmount)
}

func TestCreateCrossValidatesDeclaredAmount(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"2000": 1}
	req.DenominationsReturned = denomination.Counts{"500": 1}
	req.PayerAmount = amount(1500)
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, payer.NetAmount)
	assert.EqualValues(t, 500, payer.TotalReturned)

	req = cashRequest("wedding")
	req.PayerPhno = "9000000000"
	req.DenominationsReceived = denomination.Counts{"500": 2, "100": 1}
	req.PayerAmount = amount(1000)
	_, err = f.svc.Create(f.ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "denomination_mismatch", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "1100")
	assert.Contains(t, err.Error(), "1000")

	assert.EqualValues(t, 1, f.payerRows(t))
}

func TestCreateBareCashAndGift(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.PayerAmount = amount(501)
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	assert.EqualValues(t, 501, payer.TotalReceived)
	assert.EqualValues(t, 501, payer.NetAmount)
	assert.Empty(t, payer.DenominationsReceived.Data())

	req = cashRequest("wedding")
	req.PayerPhno = ""
	_, err = f.svc.Create(f.ctx, req)
	assert.Equal(t, "missing_amount", apperr.CodeOf(err))

	gift, err := f.svc.Create(f.ctx, domain.CreatePayerRequest{
		FunctionID:            "wedding",
		PayerName:             "Meena",
		PayerGivenObject:      "Gold",
		PayerGiftName:         "Ring",
		PayerCashMethod:       "UPI",
		DenominationsReceived: denomination.Counts{"500": 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "Gold", gift.PayerGivenObject)
	assert.Equal(t, "Ring", gift.PayerGiftName)
	assert.Empty(t, gift.PayerCashMethod)
	assert.Empty(t, gift.DenominationsReceived.Data())
	assert.EqualValues(t, 0, gift.NetAmount)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)
	f.addFunction(t, "cancelled", true)

	req := cashRequest("wedding")
	req.PayerCashMethod = "barter"
	req.PayerAmount = amount(100)
	_, err := f.svc.Create(f.ctx, req)
	assert.Equal(t, "invalid_cash_method", apperr.CodeOf(err))

	req = cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"300": 1}
	_, err = f.svc.Create(f.ctx, req)
	assert.Equal(t, "invalid_denomination", apperr.CodeOf(err))

	req = cashRequest("wedding")
	req.PayerName = " "
	_, err = f.svc.Create(f.ctx, req)
	assert.True(t, errors.Is(err, domain.ErrInvalidName))

	_, err = f.svc.Create(f.ctx, cashRequest("missing"))
	assert.True(t, errors.Is(err, domain.ErrFunctionNotFound))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Create(f.ctx, cashRequest("cancelled"))
	assert.True(t, errors.Is(err, domain.ErrFunctionNotFound))

	_, err = f.svc.Create(context.Background(), cashRequest("wedding"))
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	assert.EqualValues(t, 0, f.payerRows(t))
}

func TestPhoneUniquenessIsScopedToFunction(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)
	f.addFunction(t, "reception", false)

	req := cashRequest("wedding")
	req.PayerAmount = amount(100)
	first, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	req.FunctionID = "reception"
	_, err = f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	req.FunctionID = "wedding"
	req.PayerName = "Someone Else"
	_, err = f.svc.Create(f.ctx, req)
	assert.True(t, errors.Is(err, domain.ErrDuplicatePhone))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = f.svc.Delete(f.ctx, domain.LifecycleRequest{PayerID: first.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Restore(f.ctx, domain.LifecycleRequest{PayerID: first.ID.String()})
	assert.True(t, errors.Is(err, domain.ErrDuplicatePhone))
}

func TestUpdateReplacesDenominations(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"500": 2, "100": 1}
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Update(f.ctx, domain.UpdatePayerRequest{
		PayerID: payer.ID.String(),
		Changes: domain.PayerPatch{PayerAmount: amount(10)},
	})
	assert.True(t, errors.Is(err, domain.ErrMissingReason))

	f.clock.Advance(time.Minute)
	updated, err := f.svc.Update(f.ctx, domain.UpdatePayerRequest{
		PayerID:       payer.ID.String(),
		ReasonForEdit: "miscounted",
		Changes: domain.PayerPatch{
			PayerAmount:           amount(9999),
			DenominationsReceived: denomination.Counts{"100": 1, "50": 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, denomination.Counts{"100": 1}, updated.DenominationsReceived.Data())
	assert.EqualValues(t, 100, updated.TotalReceived)
	assert.EqualValues(t, 100, updated.NetAmount)
	assert.EqualValues(t, 100, updated.PayerAmount)

	stored, err := f.svc.Get(f.ctx, payer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, denomination.Counts{"100": 1}, stored.DenominationsReceived.Data())
	assert.EqualValues(t, 100, stored.PayerAmount)

	logs, err := f.editLogs.List(f.ctx, editlogdomain.ListEditLogRequest{TargetID: payer.ID.String()})
	require.NoError(t, err)
	require.Len(t, logs.EditLogs, 1)
	assert.Equal(t, "miscounted", logs.EditLogs[0].Reason)
	assert.Contains(t, logs.EditLogs[0].ChangedFields, "denominations_received")
	assert.Contains(t, logs.EditLogs[0].ChangedFields, "net_amount")
	assert.NotContains(t, logs.EditLogs[0].ChangedFields, "payer_name")
}

func TestUpdateBareAmountClearsItemization(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"2000": 1}
	req.DenominationsReturned = denomination.Counts{"500": 1}
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	updated, err := f.svc.Update(f.ctx, domain.UpdatePayerRequest{
		PayerID:       payer.ID.String(),
		ReasonForEdit: "paid by transfer",
		Changes:       domain.PayerPatch{PayerAmount: amount(700)},
	})
	require.NoError(t, err)

	stored, err := f.svc.Get(f.ctx, updated.ID.String())
	require.NoError(t, err)
	assert.Empty(t, stored.DenominationsReceived.Data())
	assert.Empty(t, stored.DenominationsReturned.Data())
	assert.EqualValues(t, 700, stored.TotalReceived)
	assert.EqualValues(t, 0, stored.TotalReturned)
	assert.EqualValues(t, 700, stored.NetAmount)
	assert.EqualValues(t, 700, stored.PayerAmount)
}

func TestUpdateWithoutDenominationsKeepsAmount(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"500": 1}
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	updated, err := f.svc.Update(f.ctx, domain.UpdatePayerRequest{
		PayerID:       payer.ID.String(),
		ReasonForEdit: "city typo",
		Changes:       domain.PayerPatch{PayerCity: ptr("Chennai")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Chennai", updated.PayerCity)
	assert.Empty(t, updated.DenominationsReceived.Data())
	assert.EqualValues(t, 500, updated.NetAmount)
	assert.EqualValues(t, 500, updated.TotalReceived)
}

func TestUpdateToGiftClearsCash(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.DenominationsReceived = denomination.Counts{"500": 1}
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	updated, err := f.svc.Update(f.ctx, domain.UpdatePayerRequest{
		PayerID:       payer.ID.String(),
		ReasonForEdit: "was a gift",
		Changes: domain.PayerPatch{
			PayerGivenObject: ptr("Silver"),
			PayerGiftName:    ptr("Lamp"),
			PayerAmount:      amount(0),
		},
	})
	require.NoError(t, err)
	assert.False(t, updated.IsCash())
	assert.Empty(t, updated.PayerCashMethod)
	assert.EqualValues(t, 0, updated.NetAmount)
	assert.Equal(t, "Lamp", updated.PayerGiftName)
}

func TestDeleteRestoreAndPurge(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	req := cashRequest("wedding")
	req.PayerAmount = amount(250)
	payer, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	err = f.svc.PermanentDelete(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String()})
	assert.True(t, errors.Is(err, domain.ErrNotDeleted))

	_, err = f.svc.Delete(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String(), Reason: "duplicate entry"})
	require.NoError(t, err)
	_, err = f.svc.Get(f.ctx, payer.ID.String())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	active, err := f.svc.ListByFunction(f.ctx, domain.ListPayerRequest{FunctionID: "wedding"})
	require.NoError(t, err)
	assert.Empty(t, active.Payers)
	trash, err := f.svc.ListDeleted(f.ctx, domain.ListPayerRequest{})
	require.NoError(t, err)
	require.Len(t, trash.Payers, 1)

	_, err = f.svc.Restore(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String()})
	require.NoError(t, err)
	restored, err := f.svc.Get(f.ctx, payer.ID.String())
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, payer.NetAmount, restored.NetAmount)
	assert.True(t, payer.UpdatedAt.Equal(restored.UpdatedAt))

	_, err = f.svc.Delete(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String()})
	require.NoError(t, err)
	require.NoError(t, f.svc.PermanentDelete(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String(), Reason: "cleanup"}))
	assert.EqualValues(t, 0, f.payerRows(t))

	_, err = f.svc.Restore(f.ctx, domain.LifecycleRequest{PayerID: payer.ID.String()})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.svc.Get(f.ctx, "abc")
	assert.True(t, errors.Is(err, domain.ErrInvalidID))

	logs, err := f.editLogs.List(f.ctx, editlogdomain.ListEditLogRequest{TargetType: editlogdomain.TargetPayer})
	require.NoError(t, err)
	require.Len(t, logs.EditLogs, 2)
	assert.Equal(t, editlogdomain.ActionPermanentDelete, logs.EditLogs[0].Action)
	assert.Equal(t, editlogdomain.ActionDelete, logs.EditLogs[1].Action)
}

func TestSummariesCoverActiveCashPayers(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)

	create := func(name, phone, method string, received denomination.Counts, amt *int64) domain.Payer {
		t.Helper()
		req := cashRequest("wedding")
		req.PayerName = name
		req.PayerPhno = phone
		req.PayerCashMethod = method
		req.DenominationsReceived = received
		req.PayerAmount = amt
		p, err := f.svc.Create(f.ctx, req)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		return p
	}

	create("Ravi", "1", "GPay", denomination.Counts{"500": 2, "100": 1}, nil)
	create("Kumar", "2", "google pay", denomination.Counts{"500": 1}, nil)
	create("Anbu", "3", "", nil, amount(300))
	removed := create("Bala", "4", "Cash", denomination.Counts{"2000": 5}, nil)
	_, err := f.svc.Create(f.ctx, domain.CreatePayerRequest{FunctionID: "wedding", PayerName: "Meena", PayerGivenObject: "Gold"})
	require.NoError(t, err)

	_, err = f.svc.Delete(f.ctx, domain.LifecycleRequest{PayerID: removed.ID.String()})
	require.NoError(t, err)

	summary, err := f.svc.DenominationSummary(f.ctx, "wedding")
	require.NoError(t, err)
	assert.Equal(t, "wedding", summary.FunctionID)
	assert.Equal(t, 2, summary.ItemizedPayers)
	assert.Equal(t, 1, summary.BarePayers)
	assert.EqualValues(t, 300, summary.BareAmount)
	assert.EqualValues(t, 1600, summary.TotalReceived)
	require.Len(t, summary.Lines, 2)
	assert.EqualValues(t, 500, summary.Lines[0].FaceValue)
	assert.EqualValues(t, 3, summary.Lines[0].Received)
	assert.EqualValues(t, 100, summary.Lines[1].FaceValue)

	dist, err := f.svc.PaymentMethodDistribution(f.ctx, "wedding")
	require.NoError(t, err)
	assert.Equal(t, 3, dist.CashPayers)
	assert.EqualValues(t, 1900, dist.CashAmount)
	require.Len(t, dist.Methods, 2)
	assert.Equal(t, domain.MethodShare{Method: domain.MethodGooglePay, Count: 2, Amount: 1600}, dist.Methods[0])
	assert.Equal(t, domain.MethodShare{Method: domain.MethodOther, Count: 1, Amount: 300}, dist.Methods[1])

	_, err = f.svc.DenominationSummary(f.ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrFunctionNotFound))
}

func TestProfilesTrackRepeatContributors(t *testing.T) {
	f := newFixture(t)
	f.addFunction(t, "wedding", false)
	f.addFunction(t, "reception", false)

	req := cashRequest("wedding")
	req.PayerAmount = amount(100)
	req.PayerRelation = "Uncle"
	_, err := f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	req.FunctionID = "reception"
	req.PayerRelation = ""
	req.PayerCity = "Chennai"
	_, err = f.svc.Create(f.ctx, req)
	require.NoError(t, err)

	profiles, err := f.svc.SearchProfiles(f.ctx, domain.SearchProfilesRequest{Query: "rav"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.EqualValues(t, 2, profiles[0].ContributionCount)
	assert.Equal(t, "reception", profiles[0].LastFunctionID)
	assert.Equal(t, "Uncle", profiles[0].PayerRelation)
	assert.Equal(t, "Chennai", profiles[0].PayerCity)

	byPhone, err := f.svc.SearchProfiles(f.ctx, domain.SearchProfilesRequest{Query: "98765"})
	require.NoError(t, err)
	assert.Len(t, byPhone, 1)

	none, err := f.svc.SearchProfiles(f.ctx, domain.SearchProfilesRequest{Query: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
