// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, connection pool tuning, SQL-level
// tracing, and schema migrations.
package repo

import (
	"os"
	"path/filepath"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/mkarras/go-entity-store/internal/config"
	"github.com/mkarras/go-entity-store/internal/domain"
	"github.com/mkarras/go-entity-store/internal/sysutil"
)

// Open opens the configured backend, applies pool settings from cfg, and
// installs the OpenTelemetry tracing plugin so every SQL statement shows
// up as a span under the active repository span.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		db     *gorm.DB
		target string
		err    error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = OpenPostgres(cfg.DSN)
		target = sysutil.RedactDSN(cfg.DSN)
	default:
		db, err = OpenSQLite(cfg.Path)
		target = cfg.Path
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.Driver).Str("target", target).Msg("database opened")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	return db, nil
}

// OpenPostgres opens a PostgreSQL database from a URL-style DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger()})
}

// gormLogger keeps SQL noise out of production logs; DB_DEBUG flips on
// statement logging for local debugging.
func gormLogger() gormlogger.Interface {
	if sysutil.IsTruthy(os.Getenv("DB_DEBUG")) {
		return gormlogger.Default.LogMode(gormlogger.Info)
	}
	return gormlogger.Default.LogMode(gormlogger.Warn)
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Product{},
		&domain.AuditRecord{},
	)
}
