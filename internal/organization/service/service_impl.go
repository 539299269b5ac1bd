package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/config"
	"github.com/smallbiznis/moiledger/internal/organization/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	Plans       *config.PlanCatalog
	Repo        domain.Repository
	Provisioner *tenant.Provisioner
}

type service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	plans       *config.PlanCatalog
	repo        domain.Repository
	provisioner *tenant.Provisioner
	provision   bool
}

func NewService(p Params) domain.Service {
	return &service{
		log:         p.Log.Named("organization.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		plans:       p.Plans,
		repo:        p.Repo,
		provisioner: p.Provisioner,
		provision:   p.Cfg.Tenant.ProvisionOnCreate,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (domain.CreateOrganizationResponse, error) {
	displayName := strings.TrimSpace(req.DisplayName)
	raw := strings.TrimSpace(req.OrgName)
	if raw == "" {
		raw = displayName
	}
	orgName := tenant.SanitizeOrgName(raw)
	if orgName == "" {
		return domain.CreateOrganizationResponse{}, domain.ErrInvalidName
	}
	if displayName == "" {
		displayName = orgName
	}

	planName := strings.TrimSpace(req.Plan)
	if planName == "" {
		planName = s.plans.Default()
	}
	plan, ok := s.plans.Lookup(planName)
	if !ok {
		return domain.CreateOrganizationResponse{}, domain.ErrUnknownPlan
	}

	existing, err := s.repo.FindByName(ctx, orgName)
	if err != nil {
		return domain.CreateOrganizationResponse{}, apperr.Internal(err, "lookup organization %s", orgName)
	}
	if existing != nil {
		return domain.CreateOrganizationResponse{}, domain.ErrNameTaken
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:                    s.genID.Generate(),
		OrgName:               orgName,
		DisplayName:           displayName,
		Plan:                  plan.Name,
		MaxFunctions:          int64(plan.MaxFunctions),
		SubscriptionUpdatedAt: now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CreateOrganizationResponse{}, domain.ErrNameTaken
		}
		return domain.CreateOrganizationResponse{}, apperr.Internal(err, "create organization %s", orgName)
	}

	log := s.log.With(zap.String("org_name", orgName), zap.String("org_id", org.ID.String()))
	log.Info("organization created", zap.String("plan", org.Plan))

	resp := domain.CreateOrganizationResponse{Organization: org}
	if !s.provision {
		return resp, nil
	}

	// provisioning failures are reported, the organization stays created
	report, err := s.provisioner.ProvisionTenant(ctx, org.ID, orgName)
	if err != nil {
		log.Error("tenant provisioning rejected", zap.Error(err))
	}
	resp.Provisioning = report
	return resp, nil
}

func (s *service) Get(ctx context.Context, id string) (domain.Organization, error) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || orgID == 0 {
		return domain.Organization{}, domain.ErrInvalidID
	}
	return s.get(ctx, orgID)
}

func (s *service) get(ctx context.Context, orgID snowflake.ID) (domain.Organization, error) {
	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return domain.Organization{}, apperr.Internal(err, "load organization %s", orgID)
	}
	if org == nil {
		return domain.Organization{}, domain.ErrNotFound
	}
	return *org, nil
}

func (s *service) GetByName(ctx context.Context, orgName string) (domain.Organization, error) {
	name := strings.TrimSpace(orgName)
	if !tenant.ValidOrgName(name) {
		return domain.Organization{}, domain.ErrInvalidName
	}
	org, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return domain.Organization{}, apperr.Internal(err, "load organization %s", name)
	}
	if org == nil {
		return domain.Organization{}, domain.ErrNotFound
	}
	return *org, nil
}

func (s *service) ListAll(ctx context.Context) ([]domain.Organization, error) {
	orgs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "list organizations")
	}
	return orgs, nil
}

func (s *service) ChangePlan(ctx context.Context, req domain.ChangePlanRequest) (domain.Organization, error) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(req.OrgID))
	if err != nil || orgID == 0 {
		return domain.Organization{}, domain.ErrInvalidID
	}
	plan, ok := s.plans.Lookup(req.Plan)
	if !ok {
		return domain.Organization{}, domain.ErrUnknownPlan
	}

	org, err := s.get(ctx, orgID)
	if err != nil {
		return domain.Organization{}, err
	}

	now := s.clock.Now()
	if err := s.repo.UpdatePlan(ctx, orgID, plan.Name, int64(plan.MaxFunctions), now); err != nil {
		return domain.Organization{}, apperr.Internal(err, "change plan of %s", org.OrgName)
	}
	s.log.Info("organization plan changed",
		zap.String("org_name", org.OrgName),
		zap.String("from", org.Plan),
		zap.String("to", plan.Name),
	)

	org.Plan = plan.Name
	org.MaxFunctions = int64(plan.MaxFunctions)
	org.SubscriptionUpdatedAt = now
	org.UpdatedAt = now
	return org, nil
}
