package payer

import (
	"github.com/smallbiznis/moiledger/internal/payer/repository"
	"github.com/smallbiznis/moiledger/internal/payer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payer.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideProfiles),
	fx.Provide(service.New),
)
