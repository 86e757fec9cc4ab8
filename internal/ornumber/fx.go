package ornumber

import "go.uber.org/fx"

var Module = fx.Module("ornumber",
	fx.Provide(New),
)
