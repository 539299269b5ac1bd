package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/apperr"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"go.uber.org/zap"
)

type StepResult struct {
	Kind       EntityKind `json:"kind"`
	Collection string     `json:"collection"`
	Status     Status     `json:"status"`
	Err        error      `json:"-"`
}

// Report is the per-step outcome of provisioning one organization.
type Report struct {
	OrgID           snowflake.ID  `json:"org_id"`
	OrgName         string        `json:"org_name"`
	IndexSetVersion int           `json:"index_set_version"`
	Steps           []StepResult  `json:"steps"`
	Indexes         []IndexResult `json:"indexes"`
}

// Failed reports whether any collection or index step failed.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	for _, i := range r.Indexes {
		if i.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Err joins every step failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Collection, s.Err))
		}
	}
	for _, i := range r.Indexes {
		if i.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", i.Index, i.Err))
		}
	}
	return errors.Join(errs...)
}

type Provisioner struct {
	resolver *Resolver
	indexes  *IndexProvisioner
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewProvisioner(resolver *Resolver, indexes *IndexProvisioner, log *zap.Logger, m *metrics.Metrics) *Provisioner {
	return &Provisioner{
		resolver: resolver,
		indexes:  indexes,
		log:      log.Named("tenant.provisioner"),
		metrics:  m,
	}
}

// ProvisionTenant creates the organization's tables and indexes. Storage
// failures never abort the run; they are logged and returned in the report.
// Only an invalid organization name yields an error.
func (p *Provisioner) ProvisionTenant(ctx context.Context, orgID snowflake.ID, orgName string) (Report, error) {
	if !ValidOrgName(orgName) {
		return Report{}, apperr.Configuration("invalid_org_name", "organization name %q must match [a-z0-9_]+", orgName)
	}

	log := p.log.With(zap.String("org_name", orgName), zap.String("org_id", orgID.String()))
	report := Report{
		OrgID:           orgID,
		OrgName:         orgName,
		IndexSetVersion: IndexSetVersion,
	}

	for _, kind := range Kinds() {
		step := p.provisionKind(ctx, orgName, kind)
		if step.Err != nil {
			log.Error("provision collection failed",
				zap.String("collection", step.Collection),
				zap.Error(step.Err),
			)
		}
		p.metrics.RecordProvisionStep(ctx, string(kind), string(step.Status))
		report.Steps = append(report.Steps, step)
	}

	indexes, err := p.indexes.EnsureIndexes(ctx, orgName)
	if err != nil {
		return report, err
	}
	report.Indexes = indexes

	if report.Failed() {
		log.Warn("tenant provisioned with failures", zap.Error(report.Err()))
	} else {
		log.Info("tenant provisioned")
	}
	return report, nil
}

func (p *Provisioner) provisionKind(ctx context.Context, orgName string, kind EntityKind) StepResult {
	h, err := p.resolver.Resolve(orgName, kind)
	if err != nil {
		return StepResult{Kind: kind, Collection: CollectionName(orgName, kind), Status: StatusFailed, Err: err}
	}

	step := StepResult{Kind: kind, Collection: h.Name()}
	// always consult storage, a table may have been dropped since it was bound
	h.forget()
	created, err := h.Ensure(ctx)
	switch {
	case err != nil:
		step.Status = StatusFailed
		step.Err = err
	case created:
		step.Status = StatusCreated
	default:
		step.Status = StatusExists
	}
	return step
}
