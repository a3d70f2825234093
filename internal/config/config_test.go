package config

import (
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("unexpected default driver from MustLoad: %q", cfg.DB.Driver)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Logging
	t.Setenv("LOG_LEVEL", "warning") // normalizes to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// Storage
	t.Setenv("DB_DRIVER", "SQLITE") // normalizes to lowercase
	t.Setenv("DB_PATH", "store.db")
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "10m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "90s")

	// Caching
	t.Setenv("CACHE_ENABLED", "on")
	t.Setenv("CACHE_KEY_PREFIX", "store")
	t.Setenv("CACHE_ENTITY_TTL", "4m")
	t.Setenv("CACHE_LIST_TTL", "90s")
	t.Setenv("CACHE_AGGREGATE_TTL", "12m")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_POOL_SIZE", "nope") // invalid -> default 10

	// Query limits
	t.Setenv("PAGE_SIZE_DEFAULT", "25")
	t.Setenv("PAGE_SIZE_MAX", "200")
	t.Setenv("BULK_MAX_ITEMS", "50")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}

	// Storage
	if cfg.DB.Driver != "sqlite" ||
		cfg.DB.Path != "store.db" ||
		cfg.DB.MaxOpenConns != 12 ||
		cfg.DB.MaxIdleConns != 3 ||
		cfg.DB.ConnMaxLifetime != 10*time.Minute ||
		cfg.DB.ConnMaxIdleTime != 90*time.Second {
		t.Fatalf("db fields unexpected: %+v", cfg.DB)
	}

	// Caching
	if !cfg.Cache.Enabled ||
		cfg.Cache.KeyPrefix != "store" ||
		cfg.Cache.EntityTTL != 4*time.Minute ||
		cfg.Cache.ListTTL != 90*time.Second ||
		cfg.Cache.AggregateTTL != 12*time.Minute {
		t.Fatalf("cache fields unexpected: %+v", cfg.Cache)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.Password != "hunter2" || cfg.Redis.DB != 2 ||
		cfg.Redis.DialTimeout != 3*time.Second || cfg.Redis.PoolSize != 10 {
		t.Fatalf("redis fields unexpected: %+v", cfg.Redis)
	}

	// Query limits
	if cfg.DefaultPageSize != 25 || cfg.MaxPageSize != 200 || cfg.BulkMaxItems != 50 {
		t.Fatalf("query limits unexpected: %+v", cfg)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_DSNFallsBackToDatabaseURL(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")
	t.Setenv("DATABASE_URL", "postgres://app:pw@db:5432/store")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DB.DSN != "postgres://app:pw@db:5432/store" {
		t.Fatalf("DSN fallback failed: %q", cfg.DB.DSN)
	}

	// Explicit DB_DSN wins over DATABASE_URL.
	t.Setenv("DB_DSN", "postgres://app:pw@primary:5432/store")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DB.DSN != "postgres://app:pw@primary:5432/store" {
		t.Fatalf("DB_DSN should take precedence: %q", cfg.DB.DSN)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("unknown DB_DRIVER", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		if _, err := Load(); err == nil || !containsErr(err, "DB_DRIVER") {
			t.Fatalf("expected DB_DRIVER validation error, got: %v", err)
		}
	})
	t.Run("empty DB_PATH for sqlite", func(t *testing.T) {
		t.Setenv("DB_PATH", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH") {
			t.Fatalf("expected DB_PATH validation error, got: %v", err)
		}
	})
	t.Run("postgres without DSN", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "")
		t.Setenv("DATABASE_URL", "")
		if _, err := Load(); err == nil || !containsErr(err, "DB_DSN") {
			t.Fatalf("expected DSN validation error, got: %v", err)
		}
	})
	t.Run("max open conns < 1", func(t *testing.T) {
		t.Setenv("DB_MAX_OPEN_CONNS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "DB_MAX_OPEN_CONNS") {
			t.Fatalf("expected DB_MAX_OPEN_CONNS validation error, got: %v", err)
		}
	})
	t.Run("negative idle conns", func(t *testing.T) {
		t.Setenv("DB_MAX_IDLE_CONNS", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "DB_MAX_IDLE_CONNS") {
			t.Fatalf("expected DB_MAX_IDLE_CONNS validation error, got: %v", err)
		}
	})
	t.Run("negative conn lifetime", func(t *testing.T) {
		t.Setenv("DB_CONN_MAX_LIFETIME", "-1s")
		if _, err := Load(); err == nil || !containsErr(err, "lifetimes") {
			t.Fatalf("expected lifetime validation error, got: %v", err)
		}
	})
	t.Run("non-positive cache TTL", func(t *testing.T) {
		t.Setenv("CACHE_LIST_TTL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "cache TTLs") {
			t.Fatalf("expected cache TTL validation error, got: %v", err)
		}
	})
	t.Run("empty key prefix", func(t *testing.T) {
		t.Setenv("CACHE_KEY_PREFIX", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "CACHE_KEY_PREFIX") {
			t.Fatalf("expected CACHE_KEY_PREFIX validation error, got: %v", err)
		}
	})
	t.Run("negative redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "-1")
		if _, err := Load(); err == nil || !containsErr(err, "REDIS_DB") {
			t.Fatalf("expected REDIS_DB validation error, got: %v", err)
		}
	})
	t.Run("non-positive redis dial timeout", func(t *testing.T) {
		t.Setenv("REDIS_DIAL_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "REDIS_DIAL_TIMEOUT") {
			t.Fatalf("expected REDIS_DIAL_TIMEOUT validation error, got: %v", err)
		}
	})
	t.Run("pool size < 1", func(t *testing.T) {
		t.Setenv("REDIS_POOL_SIZE", "0")
		if _, err := Load(); err == nil || !containsErr(err, "REDIS_POOL_SIZE") {
			t.Fatalf("expected REDIS_POOL_SIZE validation error, got: %v", err)
		}
	})
	t.Run("default page size < 1", func(t *testing.T) {
		t.Setenv("PAGE_SIZE_DEFAULT", "0")
		if _, err := Load(); err == nil || !containsErr(err, "PAGE_SIZE_DEFAULT") {
			t.Fatalf("expected PAGE_SIZE_DEFAULT validation error, got: %v", err)
		}
	})
	t.Run("max page size below default", func(t *testing.T) {
		t.Setenv("PAGE_SIZE_DEFAULT", "50")
		t.Setenv("PAGE_SIZE_MAX", "10")
		if _, err := Load(); err == nil || !containsErr(err, "PAGE_SIZE_MAX") {
			t.Fatalf("expected PAGE_SIZE_MAX validation error, got: %v", err)
		}
	})
	t.Run("bulk max items < 1", func(t *testing.T) {
		t.Setenv("BULK_MAX_ITEMS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "BULK_MAX_ITEMS") {
			t.Fatalf("expected BULK_MAX_ITEMS validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	os.Unsetenv("DB_DRIVER")
	os.Unsetenv("DB_DSN")
	os.Unsetenv("DATABASE_URL")
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
