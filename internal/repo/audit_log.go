// Package repo – audit trail persistence.
//
// Every mutation writes exactly one audit record inside the mutating
// transaction: if the audit insert fails the whole transaction rolls
// back, so a committed change always has its trail and a rolled-back one
// never does. Writes are never retried here; retrying is the caller's
// decision after the transaction fails as a unit.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkarras/go-entity-store/internal/domain"
)

// AuditEntry carries the mutation facts recorded by AppendAudit. The
// changed-fields diff is derived here from the two snapshots, so callers
// only supply what they saw before and after.
type AuditEntry struct {
	EntityName string
	EntityID   string
	Action     domain.AuditAction
	OldValues  map[string]any
	NewValues  map[string]any
	ActorID    string
	TenantID   *string
}

// AppendAudit writes one audit record on the supplied transaction handle.
// It must be called with the same tx that performs the mutation.
func AppendAudit(ctx context.Context, tx *gorm.DB, e AuditEntry) error {
	rec := &domain.AuditRecord{
		ID:            uuid.NewString(),
		EntityName:    e.EntityName,
		EntityID:      e.EntityID,
		Action:        e.Action,
		OldValues:     e.OldValues,
		NewValues:     e.NewValues,
		ChangedFields: domain.ChangedFields(e.OldValues, e.NewValues),
		ActorID:       e.ActorID,
		TenantID:      e.TenantID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	auditWrites.WithLabelValues(e.EntityName, string(e.Action)).Inc()
	return nil
}

// ListAuditByEntity returns the full chronological trail for one entity,
// oldest record first.
func ListAuditByEntity(ctx context.Context, db *gorm.DB, entityName, entityID string) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	err := db.WithContext(ctx).
		Where("entity_name = ? AND entity_id = ?", entityName, entityID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListRecentAudit returns the newest audit records across all entities,
// capped at limit (most recent first).
func ListRecentAudit(ctx context.Context, db *gorm.DB, limit int) ([]domain.AuditRecord, error) {
	if limit < 1 {
		limit = 50
	}
	var out []domain.AuditRecord
	err := db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
