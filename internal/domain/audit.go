// Package domain – audit records.
//
// This file defines the append-only audit trail written alongside every
// entity mutation. Audit records are write-once: nothing in the core updates
// or deletes them, and they are persisted in the same database transaction as
// the mutation they describe, so a committed mutation without its audit
// record cannot exist.
package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// AuditAction enumerates the mutation kinds recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionSoftDelete AuditAction = "SOFT_DELETE"
	AuditActionRestore    AuditAction = "RESTORE"
	AuditActionBulkCreate AuditAction = "BULK_CREATE"
)

// AuditRecord documents a single entity mutation: who changed what, the
// before/after snapshots, and the derived set of changed fields.
//
// OldValues and NewValues are optional JSON snapshots of the row (creates
// have no OldValues; soft deletes carry only the deletion stamps in
// NewValues). ChangedFields is computed with ChangedFields at write time so
// consumers never re-derive the diff.
type AuditRecord struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	EntityName    string         `json:"entity_name"    gorm:"type:varchar(64);not null;index:idx_audit_entity,priority:1"`
	EntityID      string         `json:"entity_id"      gorm:"type:char(36);not null;index:idx_audit_entity,priority:2"`
	Action        AuditAction    `json:"action"         gorm:"type:varchar(16);not null"`
	OldValues     map[string]any `json:"old_values"     gorm:"serializer:json"`
	NewValues     map[string]any `json:"new_values"     gorm:"serializer:json"`
	ChangedFields []string       `json:"changed_fields" gorm:"serializer:json"`
	ActorID       string         `json:"actor_id"       gorm:"type:varchar(64);not null"`
	TenantID      *string        `json:"tenant_id"      gorm:"type:varchar(64);index"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (AuditRecord) TableName() string { return "audit_records" }

// ChangedFields computes the audited field diff between two snapshots:
// every key of newValues whose serialized value differs from (or is absent
// in) oldValues, plus every key of oldValues absent from newValues (treated
// as a deletion). The result is sorted for deterministic storage.
func ChangedFields(oldValues, newValues map[string]any) []string {
	changed := make([]string, 0, len(newValues))
	for key, newVal := range newValues {
		oldVal, ok := oldValues[key]
		if !ok || !jsonEqual(oldVal, newVal) {
			changed = append(changed, key)
		}
	}
	for key := range oldValues {
		if _, ok := newValues[key]; !ok {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

// Snapshot converts a record into the map form stored in audit snapshots by
// round-tripping it through its JSON representation. Field names therefore
// match the model's json tags, which are also the patch keys accepted by the
// repository's Update.
func Snapshot(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// jsonEqual compares two values by their canonical JSON serialization.
// encoding/json sorts map keys, so equal structures always serialize equally.
func jsonEqual(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}
