package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/mkarras/go-entity-store/internal/config"
	"github.com/mkarras/go-entity-store/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}

	// Be tolerant across platforms/drivers:
	// - Windows: *os.PathError ("CreateFile … cannot find the file specified")
	// - SQLite:  "unable to open database file" / "out of memory (14)"
	// - Unix:    "no such file or directory"
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmasAndAutoMigrate(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	// --- Verify PRAGMAs set by OpenSQLite ---
	var (
		journalMode string
		syncVal     int
		fkOn        int
		busyMS      int
	)

	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}

	if err := db.Raw("PRAGMA synchronous;").Row().Scan(&syncVal); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	// NORMAL == 1
	if syncVal != 1 {
		t.Fatalf("expected synchronous=1 (NORMAL), got %d", syncVal)
	}

	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fkOn)
	}

	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d", busyMS)
	}

	// --- AutoMigrate should create all tables ---
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.Product{}, &domain.AuditRecord{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Quick insert round-trip to prove schema is usable.
	now := time.Now().UTC()
	p := &domain.Product{Name: "boot check", Status: domain.StatusDraft}
	p.ID = "p-boot"
	p.Version = 1
	p.Fingerprint = domain.ComputeFingerprint(p.ID, p.Version, now)
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}
	rec := &domain.AuditRecord{
		ID:         "a-boot",
		EntityName: "product",
		EntityID:   "p-boot",
		Action:     domain.AuditActionCreate,
		ActorID:    "tester",
		CreatedAt:  now,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert audit record: %v", err)
	}

	var got domain.Product
	if err := db.First(&got, "id = ?", "p-boot").Error; err != nil || got.Name != "boot check" {
		t.Fatalf("readback product failed: err=%v got=%+v", err, got)
	}
}

func TestOpen_AppliesPoolSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	db, err := Open(config.DBConfig{
		Driver:          "sqlite",
		Path:            path,
		MaxOpenConns:    7,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
}

// Compile-time guard to ensure signature stability.
var _ func(string) (*gorm.DB, error) = OpenSQLite
