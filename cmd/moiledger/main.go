package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/moiledger/internal/cache"
	"github.com/smallbiznis/moiledger/internal/clock"
	"github.com/smallbiznis/moiledger/internal/config"
	"github.com/smallbiznis/moiledger/internal/editlog"
	"github.com/smallbiznis/moiledger/internal/function"
	"github.com/smallbiznis/moiledger/internal/migration"
	"github.com/smallbiznis/moiledger/internal/observability"
	"github.com/smallbiznis/moiledger/internal/organization"
	"github.com/smallbiznis/moiledger/internal/payer"
	"github.com/smallbiznis/moiledger/internal/scheduler"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		tenant.Module,

		// Functional Domains
		organization.Module,
		editlog.Module,
		function.Module,
		payer.Module,

		migration.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
