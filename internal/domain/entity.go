// Package domain defines the persistence models shared by every entity type
// managed by the data-access core. These types are mapped with GORM and form
// the contract between the generic repository/service layers and concrete
// entities.
//
// Every domain record embeds Entity, which carries identity, multi-tenant
// scoping, optimistic-concurrency bookkeeping (version + fingerprint), soft
// deletion, and actor audit stamps. Concrete entities additionally implement
// Schema() so the generic layers can discover their table name, searchable
// fields, and tenant-partitioning without reflection.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Entity is the base model embedded by every domain record.
//
// Fields:
//   - ID: stable UUID primary key (char(36)), assigned at creation, immutable.
//   - TenantID: optional tenant tag. When set, every read and write against
//     the record is scoped to that tenant; nil means the record is not
//     tenant-partitioned. The tag is immutable for the lifetime of the row.
//   - Version: optimistic-concurrency counter. Starts at 1 and is incremented
//     exactly once per successful mutation (update, soft delete, restore).
//   - Fingerprint: content ETag derived from (ID, Version, UpdatedAt),
//     recomputed immediately before every insert and update commit. Version
//     and Fingerprint always change together; no code path may touch one
//     without the other.
//   - CreatedAt / UpdatedAt: timestamps, UTC, managed by the repository.
//   - DeletedAt: soft deletion marker (retains the row, excluded from
//     default reads).
//   - CreatedBy / UpdatedBy / DeletedBy: actor identifiers stamped from the
//     caller's TenantContext, never from user-supplied payloads.
//   - Metadata: free-form key/value bag owned by the entity; the core stores
//     it verbatim and never interprets it.
type Entity struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	TenantID    *string        `json:"tenant_id"    gorm:"type:varchar(64);index"`
	Version     int64          `json:"version"      gorm:"not null;default:1"`
	Fingerprint string         `json:"fingerprint"  gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at"   gorm:"index"`
	CreatedBy   string         `json:"created_by"   gorm:"type:varchar(64)"`
	UpdatedBy   string         `json:"updated_by"   gorm:"type:varchar(64)"`
	DeletedBy   *string        `json:"deleted_by"   gorm:"type:varchar(64)"`
	Metadata    map[string]any `json:"metadata"     gorm:"serializer:json"`
}

// Base returns the embedded Entity. It exists so generic code constrained by
// Record[T] can reach the shared fields of any concrete entity.
func (e *Entity) Base() *Entity { return e }

// IsDeleted reports whether the record carries a soft-deletion marker.
func (e *Entity) IsDeleted() bool { return e.DeletedAt.Valid }

// BelongsToTenant reports whether the record is tagged with the given tenant.
// A record without a tenant tag belongs to no tenant and always returns false.
func (e *Entity) BelongsToTenant(tenantID string) bool {
	return e.TenantID != nil && *e.TenantID == tenantID
}

// ComputeFingerprint derives the content ETag for a record revision from its
// identity, version counter, and update timestamp. The function is pure and
// must be called with the exact values about to be committed; version
// monotonicity guarantees two distinct committed revisions of the same row
// never share a fingerprint, even inside one timestamp resolution.
func ComputeFingerprint(id string, version int64, updatedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%d", id, version, updatedAt.UTC().UnixNano())))
	return hex.EncodeToString(sum[:])
}

// Schema is the fixed descriptor a concrete entity provides to the generic
// repository and service layers.
//
// Fields:
//   - Name: logical entity name, used for audit records, permissions
//     ("<name>:read"), and cache namespaces. Lowercase singular ("product").
//   - Table: database table name (also returned by the GORM TableName hook).
//   - Searchable: default column set matched by free-text search; entities
//     without searchable columns leave it empty and free-text search becomes
//     a no-op for them.
//   - TenantScoped: when true, reads and writes are partitioned by the
//     caller's tenant tag.
type Schema struct {
	Name         string
	Table        string
	Searchable   []string
	TenantScoped bool
}

// Record is the constraint satisfied by pointers to concrete entity types.
// It ties a value type T to its pointer's accessors so generic code can
// allocate (new(T)), reach the embedded Entity, and read the schema
// descriptor without reflection.
type Record[T any] interface {
	*T
	Base() *Entity
	Schema() Schema
}
