package function

import (
	"github.com/smallbiznis/moiledger/internal/function/repository"
	"github.com/smallbiznis/moiledger/internal/function/service"
	"go.uber.org/fx"
)

var Module = fx.Module("function.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
