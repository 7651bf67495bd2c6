package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SyncRules holds the tunable derivation tables used by the warehouse sync.
type SyncRules struct {
	Regions            []RegionRule  `mapstructure:"regions"`
	SentinelLocationID int64         `mapstructure:"sentinelLocationId"`
	BusinessHours      BusinessHours `mapstructure:"businessHours"`
	MaxOrderOffsetDays int           `mapstructure:"maxOrderOffsetDays"`
}

// RegionRule maps a region name to the city keywords that select it.
type RegionRule struct {
	Name   string   `mapstructure:"name"`
	Cities []string `mapstructure:"cities"`
}

// BusinessHours bounds synthesized order times. CloseHour is exclusive.
type BusinessHours struct {
	OpenHour  int `mapstructure:"openHour"`
	CloseHour int `mapstructure:"closeHour"`
}

func DefaultSyncRules() SyncRules {
	return SyncRules{
		Regions: []RegionRule{
			{Name: "East", Cities: []string{"New York", "Boston", "Philadelphia", "Miami"}},
			{Name: "West", Cities: []string{"Los Angeles", "San Francisco", "Seattle", "Portland"}},
			{Name: "South", Cities: []string{"Houston", "Dallas", "Atlanta", "New Orleans"}},
		},
		SentinelLocationID: 999999,
		BusinessHours:      BusinessHours{OpenHour: 8, CloseHour: 24},
		MaxOrderOffsetDays: 365,
	}
}

type SyncRulesHolder struct {
	current atomic.Value // holds SyncRules
}

// NewStaticSyncRulesHolder returns a holder that never reloads.
func NewStaticSyncRulesHolder(rules SyncRules) *SyncRulesHolder {
	holder := &SyncRulesHolder{}
	holder.current.Store(rules)
	return holder
}

func NewSyncRulesHolder(log *zap.Logger) (*SyncRulesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sync-rules")

	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/ordersync/config")
	v.AddConfigPath("/etc/ordersync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Info("sync.yml not found, using default rules")
		return NewStaticSyncRulesHolder(DefaultSyncRules()), nil
	}

	cfg, err := decodeSyncRules(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticSyncRulesHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSyncRules(v)
		if err != nil {
			log.Warn("invalid sync rules ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("sync rules reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SyncRulesHolder) Get() SyncRules {
	return h.current.Load().(SyncRules)
}

func decodeSyncRules(v *viper.Viper) (SyncRules, error) {
	cfg := DefaultSyncRules()
	if v.IsSet("sync") {
		if err := v.UnmarshalKey("sync", &cfg); err != nil {
			return SyncRules{}, err
		}
	}
	if err := validateSyncRules(cfg); err != nil {
		return SyncRules{}, err
	}
	return cfg, nil
}

func validateSyncRules(cfg SyncRules) error {
	if len(cfg.Regions) == 0 {
		return errors.New("sync.regions cannot be empty")
	}
	for _, region := range cfg.Regions {
		if strings.TrimSpace(region.Name) == "" {
			return errors.New("sync.regions[].name cannot be empty")
		}
	}
	if cfg.SentinelLocationID <= 0 {
		return errors.New("sync.sentinelLocationId must be positive")
	}
	hours := cfg.BusinessHours
	if hours.OpenHour < 0 || hours.CloseHour > 24 || hours.OpenHour >= hours.CloseHour {
		return fmt.Errorf("sync.businessHours %d-%d is not a valid window", hours.OpenHour, hours.CloseHour)
	}
	if cfg.MaxOrderOffsetDays < 0 {
		return errors.New("sync.maxOrderOffsetDays cannot be negative")
	}
	return nil
}
