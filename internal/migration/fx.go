package migration

import (
	"github.com/smallbiznis/ordersync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	OLTP *gorm.DB `name:"oltp"`
	OLAP *gorm.DB `name:"olap"`
	Log  *zap.Logger
}

var Module = fx.Module("migrations",
	fx.Invoke(func(p Params) error {
		if err := Migrate(p.OLTP, db.StoreOLTP); err != nil {
			return err
		}
		if err := Migrate(p.OLAP, db.StoreOLAP); err != nil {
			return err
		}
		p.Log.Info("migrations applied")
		return nil
	}),
)
