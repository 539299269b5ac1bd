package editlog

import (
	"github.com/smallbiznis/moiledger/internal/editlog/repository"
	"github.com/smallbiznis/moiledger/internal/editlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("editlog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
