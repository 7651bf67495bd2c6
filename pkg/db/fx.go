package db

import (
	"context"

	"github.com/smallbiznis/ordersync/internal/config"
	obslogger "github.com/smallbiznis/ordersync/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	StoreOLTP = "oltp"
	StoreOLAP = "olap"
)

var Module = fx.Module("db",
	fx.Provide(NewStores),
)

// Stores exposes the operational and warehouse connections as named values.
type Stores struct {
	fx.Out

	OLTP *gorm.DB `name:"oltp"`
	OLAP *gorm.DB `name:"olap"`
}

func NewStores(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Stores, error) {
	oltp, err := Open(FromConfig(cfg.OLTP), Options{Store: StoreOLTP, Instrument: true, Logger: gormLoggerConfig(StoreOLTP)})
	if err != nil {
		return Stores{}, err
	}
	olap, err := Open(FromConfig(cfg.OLAP), Options{Store: StoreOLAP, Instrument: true, Logger: gormLoggerConfig(StoreOLAP)})
	if err != nil {
		closeStore(oltp)
		return Stores{}, err
	}

	log.Info("stores connected",
		zap.String("oltp_type", cfg.OLTP.Type),
		zap.String("olap_type", cfg.OLAP.Type),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeStore(oltp)
			closeStore(olap)
			return nil
		},
	})

	return Stores{OLTP: oltp, OLAP: olap}, nil
}

func gormLoggerConfig(store string) obslogger.GormLoggerConfig {
	cfg := obslogger.DefaultGormLoggerConfig()
	cfg.Store = store
	return cfg
}

func closeStore(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
