package tenant

import "go.uber.org/fx"

var Module = fx.Module("tenant",
	fx.Provide(NewRegistry),
	fx.Provide(NewResolver),
	fx.Provide(NewIndexProvisioner),
	fx.Provide(NewProvisioner),
)
