package operational

import (
	"github.com/smallbiznis/ordersync/internal/operational/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("operational.repository",
	fx.Provide(repository.Provide),
)
