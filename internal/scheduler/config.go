package scheduler

import (
	"time"

	"github.com/smallbiznis/ordersync/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval    time.Duration
	SyncSchedule   string
	SyncEnabled    bool
	SyncTimeout    time.Duration
	SweepBatchSize int
	SweepAfter     time.Duration
	SweepTimeout   time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		SyncSchedule:   "0 2 * * *",
		SyncEnabled:    true,
		SyncTimeout:    2 * time.Hour,
		SweepBatchSize: 10,
		SweepAfter:     5 * time.Minute,
		SweepTimeout:   30 * time.Minute,
	}
}

// ProvideConfig derives the scheduler config from the service config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		SyncSchedule: cfg.Sync.Schedule,
		SyncEnabled:  cfg.Sync.ScheduleEnabled,
		SweepAfter:   cfg.Sync.PendingSweepEvery,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SyncSchedule == "" {
		c.SyncSchedule = defaults.SyncSchedule
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = defaults.SyncTimeout
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = defaults.SweepBatchSize
	}
	if c.SweepAfter <= 0 {
		c.SweepAfter = defaults.SweepAfter
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = defaults.SweepTimeout
	}
	return c
}
