// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as storage backends, cache TTL tiers, pagination limits, logging, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkarras/go-entity-store/internal/sysutil"
	"github.com/mkarras/go-entity-store/internal/utils"
)

// DBConfig defines relational storage settings. Driver selects the GORM
// dialector: "sqlite" opens Path, "postgres" opens DSN.
type DBConfig struct {
	Driver          string        // DB_DRIVER: sqlite|postgres
	Path            string        // DB_PATH (sqlite file)
	DSN             string        // DB_DSN, falling back to DATABASE_URL
	MaxOpenConns    int           // DB_MAX_OPEN_CONNS
	MaxIdleConns    int           // DB_MAX_IDLE_CONNS
	ConnMaxLifetime time.Duration // DB_CONN_MAX_LIFETIME
	ConnMaxIdleTime time.Duration // DB_CONN_MAX_IDLE_TIME
}

// RedisConfig defines the Redis cache backend. An empty Addr means no
// Redis: the coordinator runs on the in-process store instead.
type RedisConfig struct {
	Addr        string        // REDIS_ADDR (e.g. "cache:6379")
	Password    string        // REDIS_PASSWORD
	DB          int           // REDIS_DB
	DialTimeout time.Duration // REDIS_DIAL_TIMEOUT
	PoolSize    int           // REDIS_POOL_SIZE
}

// CacheConfig defines coordinator behaviour and the TTL tiers applied to
// the different read shapes.
type CacheConfig struct {
	Enabled      bool          // CACHE_ENABLED
	KeyPrefix    string        // CACHE_KEY_PREFIX
	EntityTTL    time.Duration // CACHE_ENTITY_TTL (single-record reads)
	ListTTL      time.Duration // CACHE_LIST_TTL (paginated lists)
	AggregateTTL time.Duration // CACHE_AGGREGATE_TTL (stats, featured sets)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-entity-store")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DB DBConfig

	// Caching
	Cache CacheConfig
	Redis RedisConfig

	// Query limits
	DefaultPageSize int // PAGE_SIZE_DEFAULT: applied when callers pass 0
	MaxPageSize     int // PAGE_SIZE_MAX: hard upper bound per request
	BulkMaxItems    int // BULK_MAX_ITEMS: max items per bulk create call

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. A local .env file, when
// present, seeds unset variables first; real environment always wins.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DB: DBConfig{
			Driver:          strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:            getenv("DB_PATH", "app.db"),
			DSN:             sysutil.FirstNonEmpty(os.Getenv("DB_DSN"), os.Getenv("DATABASE_URL")),
			MaxOpenConns:    getint("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getint("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getdur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getdur("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},

		// Caching
		Cache: CacheConfig{
			Enabled:      getbool("CACHE_ENABLED", true),
			KeyPrefix:    getenv("CACHE_KEY_PREFIX", "entitystore"),
			EntityTTL:    getdur("CACHE_ENTITY_TTL", 5*time.Minute),
			ListTTL:      getdur("CACHE_LIST_TTL", 2*time.Minute),
			AggregateTTL: getdur("CACHE_AGGREGATE_TTL", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", ""),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          getint("REDIS_DB", 0),
			DialTimeout: getdur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			PoolSize:    getint("REDIS_POOL_SIZE", 10),
		},

		// Query limits
		DefaultPageSize: getint("PAGE_SIZE_DEFAULT", 20),
		MaxPageSize:     getint("PAGE_SIZE_MAX", 500),
		BulkMaxItems:    getint("BULK_MAX_ITEMS", 100),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-entity-store"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty when DB_DRIVER=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN (or DATABASE_URL) must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DB.MaxOpenConns < 1 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if cfg.DB.MaxIdleConns < 0 {
		return cfg, errors.New("DB_MAX_IDLE_CONNS must be >= 0")
	}
	if cfg.DB.ConnMaxLifetime < 0 || cfg.DB.ConnMaxIdleTime < 0 {
		return cfg, errors.New("DB connection lifetimes must be >= 0")
	}
	if cfg.Cache.EntityTTL <= 0 || cfg.Cache.ListTTL <= 0 || cfg.Cache.AggregateTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	if strings.TrimSpace(cfg.Cache.KeyPrefix) == "" {
		return cfg, errors.New("CACHE_KEY_PREFIX must not be empty")
	}
	if cfg.Redis.DB < 0 {
		return cfg, errors.New("REDIS_DB must be >= 0")
	}
	if cfg.Redis.DialTimeout <= 0 {
		return cfg, errors.New("REDIS_DIAL_TIMEOUT must be > 0")
	}
	if cfg.Redis.PoolSize < 1 {
		return cfg, errors.New("REDIS_POOL_SIZE must be >= 1")
	}
	if cfg.DefaultPageSize < 1 {
		return cfg, errors.New("PAGE_SIZE_DEFAULT must be >= 1")
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		return cfg, errors.New("PAGE_SIZE_MAX must be >= PAGE_SIZE_DEFAULT")
	}
	if cfg.BulkMaxItems < 1 {
		return cfg, errors.New("BULK_MAX_ITEMS must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (internal deps only) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	return utils.AtoiDefault(os.Getenv(k), def)
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
