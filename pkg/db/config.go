package db

import "github.com/smallbiznis/ordersync/internal/config"

type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// FromConfig maps one store section of the application config.
func FromConfig(cfg config.DatabaseConfig) Config {
	return Config{
		Type:            cfg.Type,
		Host:            cfg.Host,
		Port:            cfg.Port,
		Name:            cfg.Name,
		User:            cfg.User,
		Password:        cfg.Password,
		SSLMode:         cfg.SSLMode,
		MaxIdleConn:     cfg.MaxIdleConn,
		MaxOpenConn:     cfg.MaxOpenConn,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}
