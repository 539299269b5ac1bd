package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/config"
	"github.com/smallbiznis/moiledger/internal/migration"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"github.com/smallbiznis/moiledger/internal/organization/domain"
	"github.com/smallbiznis/moiledger/internal/organization/repository"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	gate  domain.SubscriptionGate
	clock *clock.FakeClock
}

func newFixture(t *testing.T, provision bool) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	registry, err := tenant.NewRegistry()
	require.NoError(t, err)

	log := zap.NewNop()
	m := metrics.NewNop()
	resolver := tenant.NewResolver(conn, registry, log)
	provisioner := tenant.NewProvisioner(resolver, tenant.NewIndexProvisioner(resolver, log, m), log, m)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewRepository(conn)
	plans := config.NewStaticPlanCatalog(config.PlanFree,
		config.Plan{Name: config.PlanFree, MaxFunctions: 2},
		config.Plan{Name: config.PlanPremium, MaxFunctions: config.UnlimitedFunctions},
	)

	cfg := config.Config{Tenant: config.TenantConfig{ProvisionOnCreate: provision}}
	svc := NewService(Params{
		Log:         log,
		Cfg:         cfg,
		GenID:       node,
		Clock:       clk,
		Plans:       plans,
		Repo:        repo,
		Provisioner: provisioner,
	})
	return fixture{
		db:    conn,
		svc:   svc,
		gate:  NewGate(repo, clk, log),
		clock: clk,
	}
}

func TestCreateSanitizesNameAndProvisions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Acme Events"})
	require.NoError(t, err)

	org := resp.Organization
	assert.Equal(t, "acme_events", org.OrgName)
	assert.Equal(t, "Acme Events", org.DisplayName)
	assert.Equal(t, config.PlanFree, org.Plan)
	assert.EqualValues(t, 2, org.MaxFunctions)

	assert.False(t, resp.Provisioning.Failed())
	for _, kind := range tenant.Kinds() {
		assert.True(t, f.db.Migrator().HasTable(tenant.CollectionName("acme_events", kind)))
	}

	stored, err := f.svc.GetByName(ctx, "acme_events")
	require.NoError(t, err)
	assert.Equal(t, org.ID, stored.ID)

	byID, err := f.svc.Get(ctx, org.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "acme_events", byID.OrgName)
}

func TestCreateWithoutProvisioningLeavesTablesForFirstAccess(t *testing.T) {
	f := newFixture(t, false)

	resp, err := f.svc.Create(context.Background(), domain.CreateOrganizationRequest{DisplayName: "Globex"})
	require.NoError(t, err)
	assert.Empty(t, resp.Provisioning.Steps)
	assert.False(t, f.db.Migrator().HasTable("globex_functions"))
}

func TestCreateRejectsDuplicatesAndBadInput(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Acme"})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "ACME!"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "!!!"})
	assert.True(t, errors.Is(err, domain.ErrInvalidName))

	_, err = f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Initech", Plan: "gold"})
	assert.True(t, errors.Is(err, domain.ErrUnknownPlan))

	_, err = f.svc.Get(ctx, "not-an-id")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.GetByName(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGateEnforcesPlanLimit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Acme"})
	require.NoError(t, err)
	orgID := resp.Organization.ID

	for i := 0; i < 2; i++ {
		status, err := f.gate.CheckLimit(ctx, orgID)
		require.NoError(t, err)
		require.False(t, status.LimitReached)
		require.NoError(t, f.gate.IncrementUsage(ctx, f.db, orgID))
	}

	status, err := f.gate.CheckLimit(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, status.LimitReached)
	assert.EqualValues(t, 2, status.FunctionsCreated)

	err = f.gate.IncrementUsage(ctx, f.db, orgID)
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))

	require.NoError(t, f.gate.DecrementUsage(ctx, f.db, orgID))
	status, err = f.gate.CheckLimit(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, status.LimitReached)
	assert.EqualValues(t, 1, status.FunctionsCreated)
}

func TestGateDecrementNeverGoesNegative(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Acme"})
	require.NoError(t, err)

	require.NoError(t, f.gate.DecrementUsage(ctx, f.db, resp.Organization.ID))
	status, err := f.gate.CheckLimit(ctx, resp.Organization.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, status.FunctionsCreated)
}

func TestChangePlanToUnlimited(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, domain.CreateOrganizationRequest{DisplayName: "Acme"})
	require.NoError(t, err)
	orgID := resp.Organization.ID
	require.NoError(t, f.gate.IncrementUsage(ctx, f.db, orgID))
	require.NoError(t, f.gate.IncrementUsage(ctx, f.db, orgID))

	f.clock.Advance(time.Hour)
	org, err := f.svc.ChangePlan(ctx, domain.ChangePlanRequest{OrgID: orgID.String(), Plan: "Premium"})
	require.NoError(t, err)
	assert.Equal(t, config.PlanPremium, org.Plan)
	assert.True(t, org.Unlimited())

	status, err := f.gate.CheckLimit(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, status.LimitReached)
	require.NoError(t, f.gate.IncrementUsage(ctx, f.db, orgID))

	orgs, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.EqualValues(t, 3, orgs[0].FunctionsCreated)
}
