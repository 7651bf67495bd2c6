package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	OLTP DatabaseConfig
	OLAP DatabaseConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UploadDir string

	Sync SyncConfig
}

// DatabaseConfig describes one of the two stores the service talks to.
type DatabaseConfig struct {
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

// SyncConfig controls warehouse sync triggers and hardening knobs.
type SyncConfig struct {
	Schedule            string
	ScheduleEnabled     bool
	ResolverTimeout     time.Duration
	SynthesisSeed       uint64
	RecentJobWindow     time.Duration
	AutoSyncMinInserted int
	LockTTL             time.Duration
	PendingSweepEvery   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "ordersync"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		OLTP:          loadDatabase("OLTP_DATABASE", "ordersync_oltp"),
		OLAP:          loadDatabase("OLAP_DATABASE", "ordersync_olap"),
		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		Sync: SyncConfig{
			Schedule:            getenv("SYNC_SCHEDULE", "0 2 * * *"),
			ScheduleEnabled:     getenvBool("SYNC_SCHEDULE_ENABLED", true),
			ResolverTimeout:     getenvDuration("SYNC_RESOLVER_TIMEOUT", 0),
			SynthesisSeed:       uint64(getenvInt64("SYNC_SYNTHESIS_SEED", 42)),
			RecentJobWindow:     getenvDuration("SYNC_RECENT_JOB_WINDOW", time.Hour),
			AutoSyncMinInserted: getenvInt("UPLOAD_AUTO_SYNC_THRESHOLD", 1),
			LockTTL:             getenvDuration("SYNC_LOCK_TTL", 30*time.Minute),
			PendingSweepEvery:   getenvDuration("UPLOAD_SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	return cfg
}

func loadDatabase(prefix, defaultName string) DatabaseConfig {
	return DatabaseConfig{
		Type:            strings.ToLower(getenv(prefix+"_TYPE", "postgres")),
		Host:            getenv(prefix+"_HOST", "localhost"),
		Port:            getenv(prefix+"_PORT", "5432"),
		Name:            getenv(prefix+"_NAME", defaultName),
		User:            getenv(prefix+"_USER", "postgres"),
		Password:        getenv(prefix+"_PASSWORD", "postgres"),
		SSLMode:         getenv(prefix+"_SSLMODE", "disable"),
		MaxIdleConn:     getenvInt(prefix+"_MAX_IDLE_CONN", 5),
		MaxOpenConn:     getenvInt(prefix+"_MAX_OPEN_CONN", 20),
		ConnMaxLifetime: getenvInt(prefix+"_CONN_MAX_LIFETIME", 3600),
		ConnMaxIdleTime: getenvInt(prefix+"_CONN_MAX_IDLE_TIME", 300),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
