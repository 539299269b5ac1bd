package migration

import (
	"context"

	"github.com/smallbiznis/moiledger/internal/config"
	organizationdomain "github.com/smallbiznis/moiledger/internal/organization/domain"
	"github.com/smallbiznis/moiledger/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, orgs organizationdomain.Service, log *zap.Logger) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.EnsureBootstrapOrganization(context.Background(), orgs, cfg.Tenant.BootstrapOrgName, log)
	}),
)
