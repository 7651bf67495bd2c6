package observability

import (
	"testing"

	"github.com/smallbiznis/ordersync/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ORDERSYNC_ROLE", "")
	t.Setenv("OTEL_SAMPLE_SYNC_RUNS", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEPLOYMENT_ENV", "")
	t.Setenv("SERVICE_VERSION", "")

	cfg := LoadConfig(config.Config{Environment: "production", AppVersion: "1.2.0"})

	assert.Equal(t, "ordersync", cfg.ServiceName)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.True(t, cfg.OtelSampleSyncRuns)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigRoleAndSyncSampling(t *testing.T) {
	t.Setenv("ORDERSYNC_ROLE", "Worker")
	t.Setenv("OTEL_SAMPLE_SYNC_RUNS", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEPLOYMENT_ENV", "")

	cfg := LoadConfig(config.Config{AppName: "ordersync", Environment: "production"})

	assert.Equal(t, "ordersync-worker", cfg.ServiceName)
	assert.False(t, cfg.OtelSampleSyncRuns)
	assert.True(t, cfg.Debug())
}
