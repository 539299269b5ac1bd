// Package seed bootstraps data the service needs before serving traffic.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/moiledger/internal/apperr"
	organizationdomain "github.com/smallbiznis/moiledger/internal/organization/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"go.uber.org/zap"
)

// EnsureBootstrapOrganization creates the named organization, and through it
// the tenant tables, when it does not exist yet. An empty name is a no-op.
func EnsureBootstrapOrganization(ctx context.Context, orgs organizationdomain.Service, name string, log *zap.Logger) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if orgs == nil {
		return errors.New("seed organization service is required")
	}

	orgName := tenant.SanitizeOrgName(name)
	_, err := orgs.GetByName(ctx, orgName)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrValidation):
		return err
	}

	resp, err := orgs.Create(ctx, organizationdomain.CreateOrganizationRequest{
		DisplayName: name,
		OrgName:     orgName,
	})
	if err != nil {
		return err
	}
	log.Info("bootstrap organization created",
		zap.String("org_name", resp.Organization.OrgName),
		zap.Bool("provisioning_failed", resp.Provisioning.Failed()),
	)
	return nil
}
