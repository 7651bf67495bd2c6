package syncengine

import "go.uber.org/fx"

var Module = fx.Module("syncengine",
	fx.Provide(New),
	fx.Provide(func(o *Orchestrator) Runner { return o }),
)
