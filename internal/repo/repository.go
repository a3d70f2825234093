// Package repo – generic entity repository.
//
// Repository[T] is the single data-access front for every entity type:
// cache-aside reads, filtered and paginated lists, and transactional
// mutations that write their audit record inside the same transaction.
// Cache invalidation happens strictly after commit, so a rolled-back
// transaction can never leave the cache ahead of the database.
//
// Error semantics:
//   - Missing, soft-deleted, and other-tenant records all surface as
//     domain.ErrNotFound; the cases are deliberately indistinguishable.
//   - Stale version updates surface as *domain.VersionConflictError and
//     leave row and audit trail untouched.
//   - Malformed options and filters surface as *domain.ValidationError.
//   - Any other storage failure wraps as *domain.StoreUnavailableError.
//
// Cache failures never surface at all: the coordinator degrades them to
// misses and no-ops.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mkarras/go-entity-store/internal/cache"
	"github.com/mkarras/go-entity-store/internal/domain"
	"github.com/mkarras/go-entity-store/internal/utils"
)

// listCacheMaxPageSize caps which list reads may be cached: oversized
// pages would evict many small entries for one rarely-repeated blob.
const listCacheMaxPageSize = 100

// platformScope is the cache-key segment for callers without a tenant.
const platformScope = "platform"

// immutableColumns are stripped from update patches: identity, tenant
// tag, and bookkeeping stamps are owned by the repository, never by the
// caller.
var immutableColumns = map[string]struct{}{
	"id":          {},
	"tenant_id":   {},
	"version":     {},
	"fingerprint": {},
	"created_at":  {},
	"created_by":  {},
	"updated_at":  {},
	"updated_by":  {},
	"deleted_at":  {},
	"deleted_by":  {},
}

// Page is one page of records plus pagination metadata.
type Page[T any] struct {
	Items []T `json:"items"`
	utils.PageInfo
}

// BulkFailure records one rejected item of a bulk create: its position
// in the input, the item as submitted, and why it was rejected.
type BulkFailure[T any] struct {
	Index int    `json:"index"`
	Item  *T     `json:"item,omitempty"`
	Error string `json:"error"`
}

// BulkResult summarizes a bulk create: only durably committed items
// count as succeeded.
type BulkResult[T any] struct {
	Created   []*T             `json:"created"`
	Failures  []BulkFailure[T] `json:"failures,omitempty"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// Repository is the generic data-access layer for one entity type T.
// The schema descriptor (entity name, table, searchable columns, tenant
// partitioning) is read once from the type itself at construction.
type Repository[T any, P domain.Record[T]] struct {
	db     *gorm.DB
	cache  *cache.Coordinator
	log    zerolog.Logger
	schema domain.Schema

	// DefaultPageSize is applied when ListOptions.PageSize is zero.
	DefaultPageSize int
}

// NewRepository builds a Repository for T on the given handles.
func NewRepository[T any, P domain.Record[T]](db *gorm.DB, cc *cache.Coordinator, log zerolog.Logger) *Repository[T, P] {
	schema := P(new(T)).Schema()
	return &Repository[T, P]{
		db:              db,
		cache:           cc,
		log:             log.With().Str("entity", schema.Name).Logger(),
		schema:          schema,
		DefaultPageSize: 20,
	}
}

// Schema exposes the entity descriptor to collaborating layers.
func (r *Repository[T, P]) Schema() domain.Schema { return r.schema }

// DB exposes the underlying handle for read-side collaborators (audit
// trail queries, health checks). Mutations must go through Repository.
func (r *Repository[T, P]) DB() *gorm.DB { return r.db }

// FindByID loads one record by primary key. Plain reads (no relations,
// no projection, not including deleted) are served cache-aside on the
// entity TTL; every variant read goes straight to the database.
func (r *Repository[T, P]) FindByID(ctx context.Context, tc *domain.TenantContext, id string, opts FindOptions) (out *T, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "FindByID", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.String("entity.id", id),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "find_by_id", start, err) }()

	if err = validateAssociations(opts.Relations); err != nil {
		return nil, err
	}
	if err = validateFields(opts.Fields); err != nil {
		return nil, err
	}

	plain := !opts.Uncached && !opts.IncludeDeleted &&
		len(opts.Relations) == 0 && len(opts.Fields) == 0
	key := r.entityKey(tenantScopeOf(tc), id)
	if plain {
		var row T
		if r.cache.GetJSON(ctx, key, &row) {
			return &row, nil
		}
	}

	q := r.scope(r.db.WithContext(ctx), tc, opts.IncludeDeleted)
	for _, rel := range opts.Relations {
		q = q.Preload(rel)
	}
	if len(opts.Fields) > 0 {
		q = q.Select(opts.Fields)
	}

	var row T
	err = q.First(&row, "id = ?", id).Error
	if err != nil {
		return nil, classify("find", err)
	}
	if plain {
		r.cache.SetJSON(ctx, key, &row, r.cache.EntityTTL())
	}
	return &row, nil
}

// FindMany returns one page of records matching the options. The result
// is cached on the list TTL when the page is small enough; the cache key
// covers the caller's tenant scope and the full normalized option set.
func (r *Repository[T, P]) FindMany(ctx context.Context, tc *domain.TenantContext, opts ListOptions) (page *Page[T], err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "FindMany", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "find_many", start, err) }()

	opts, err = r.normalizeList(opts)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(opts.SortField, opts.SortDir)
	if err != nil {
		return nil, err
	}

	cacheable := !opts.Uncached && opts.PageSize <= listCacheMaxPageSize
	key := r.listKey(tenantScopeOf(tc), opts)
	if cacheable {
		var cached Page[T]
		if r.cache.GetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	// The predicate set is built twice so COUNT and SELECT cannot
	// contaminate each other's clause state.
	base := func() (*gorm.DB, error) {
		q := r.scope(r.db.WithContext(ctx).Model(new(T)), tc, opts.IncludeDeleted)
		q, err := applyFilters(q, opts.Filters)
		if err != nil {
			return nil, err
		}
		return applySearch(q, opts.Search, r.schema.Searchable), nil
	}

	countQ, err := base()
	if err != nil {
		return nil, err
	}
	var total int64
	if err = countQ.Count(&total).Error; err != nil {
		err = classify("count", err)
		return nil, err
	}

	items := []T{}
	if total > 0 {
		listQ, err2 := base()
		if err2 != nil {
			err = err2
			return nil, err
		}
		for _, rel := range opts.Relations {
			listQ = listQ.Preload(rel)
		}
		err = listQ.
			Order(order).
			Offset(utils.Offset(opts.Page, opts.PageSize)).
			Limit(opts.PageSize).
			Find(&items).Error
		if err != nil {
			err = classify("list", err)
			return nil, err
		}
	}

	page = &Page[T]{
		Items:    items,
		PageInfo: utils.NewPageInfo(opts.Page, opts.PageSize, total),
	}
	if cacheable {
		r.cache.SetJSON(ctx, key, page, r.cache.ListTTL())
	}
	return page, nil
}

// Create persists a new record and its CREATE audit record in one
// transaction. Identity, version, fingerprint, and actor stamps are
// assigned here; caller-set values for them are overwritten. After
// commit the list namespace is invalidated (no entity key can exist for
// a brand-new ID).
func (r *Repository[T, P]) Create(ctx context.Context, tc *domain.TenantContext, row P) (out *T, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "create", start, err) }()

	out, err = r.createOne(ctx, tc, row, domain.AuditActionCreate)
	if err != nil {
		return nil, err
	}
	r.invalidateLists(ctx)
	return out, nil
}

// BulkCreate attempts each item in its own transaction so one bad item
// cannot sink its siblings. Failures are reported per index; the list
// namespace is invalidated once if anything committed.
func (r *Repository[T, P]) BulkCreate(ctx context.Context, tc *domain.TenantContext, items []P) (res *BulkResult[T], err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "BulkCreate", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.Int("bulk.total", len(items)),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "bulk_create", start, err) }()

	res = &BulkResult[T]{Total: len(items)}
	for i, item := range items {
		if item == nil {
			res.Failures = append(res.Failures, BulkFailure[T]{Index: i, Error: "nil item"})
			continue
		}
		created, cerr := r.createOne(ctx, tc, item, domain.AuditActionBulkCreate)
		if cerr != nil {
			res.Failures = append(res.Failures, BulkFailure[T]{Index: i, Item: (*T)(item), Error: cerr.Error()})
			continue
		}
		res.Created = append(res.Created, created)
	}
	res.Succeeded = len(res.Created)
	res.Failed = len(res.Failures)
	if res.Succeeded > 0 {
		r.invalidateLists(ctx)
	}
	return res, nil
}

// Update applies a patch of column values to one record inside a single
// transaction: load current, check the caller's version claim, strip
// immutable columns, bump version and fingerprint together, write the
// UPDATE audit record with before/after snapshots. The row is guarded by
// a conditional UPDATE on the loaded version, so two racing writers can
// never both win.
func (r *Repository[T, P]) Update(ctx context.Context, tc *domain.TenantContext, id string, patch map[string]any) (out *T, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.String("entity.id", id),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "update", start, err) }()

	var invalidate *domain.Entity
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur T
		if err := r.scope(tx, tc, false).First(&cur, "id = ?", id).Error; err != nil {
			return err
		}
		base := P(&cur).Base()

		// An explicit version claim is verified before anything is
		// written; a stale claim aborts with row and trail untouched.
		if raw, ok := patch["version"]; ok {
			claimed, ok := toInt64(raw)
			if !ok {
				return domain.NewValidationError("version", "version must be an integer")
			}
			if claimed != base.Version {
				return &domain.VersionConflictError{
					EntityName: r.schema.Name,
					EntityID:   id,
					Expected:   claimed,
					Actual:     base.Version,
				}
			}
		}

		now := time.Now().UTC()
		updates := make(map[string]any, len(patch)+4)
		for k, v := range patch {
			if _, immutable := immutableColumns[k]; immutable {
				continue
			}
			updates[k] = v
		}
		nextVersion := base.Version + 1
		updates["version"] = nextVersion
		updates["updated_at"] = now
		updates["updated_by"] = tc.ActorID
		updates["fingerprint"] = domain.ComputeFingerprint(base.ID, nextVersion, now)

		res := tx.Model(new(T)).
			Where("id = ? AND version = ?", id, base.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent writer committed between our load and the
			// conditional update.
			return r.conflict(tx, id, base.Version)
		}

		var after T
		if err := tx.First(&after, "id = ?", id).Error; err != nil {
			return err
		}
		afterBase := P(&after).Base()
		if err := AppendAudit(ctx, tx, AuditEntry{
			EntityName: r.schema.Name,
			EntityID:   id,
			Action:     domain.AuditActionUpdate,
			OldValues:  domain.Snapshot(&cur),
			NewValues:  domain.Snapshot(&after),
			ActorID:    tc.ActorID,
			TenantID:   afterBase.TenantID,
		}); err != nil {
			return err
		}
		out, invalidate = &after, afterBase
		return nil
	})
	if err != nil {
		return nil, classify("update", err)
	}
	r.invalidateEntity(ctx, invalidate)
	r.invalidateLists(ctx)
	return out, nil
}

// SoftDelete marks one record deleted. It is an update-shaped mutation:
// version and fingerprint step together with the deletion stamps, and a
// SOFT_DELETE audit record joins the same transaction. Deleting an
// already-deleted or absent record reports ErrNotFound and leaves
// storage untouched.
func (r *Repository[T, P]) SoftDelete(ctx context.Context, tc *domain.TenantContext, id string) (deleted bool, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "SoftDelete", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.String("entity.id", id),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "soft_delete", start, err) }()

	var invalidate *domain.Entity
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur T
		if err := r.scope(tx, tc, false).First(&cur, "id = ?", id).Error; err != nil {
			return err
		}
		base := P(&cur).Base()

		now := time.Now().UTC()
		nextVersion := base.Version + 1
		res := tx.Model(new(T)).
			Where("id = ? AND version = ?", id, base.Version).
			Updates(map[string]any{
				"deleted_at":  now,
				"deleted_by":  tc.ActorID,
				"version":     nextVersion,
				"updated_at":  now,
				"updated_by":  tc.ActorID,
				"fingerprint": domain.ComputeFingerprint(base.ID, nextVersion, now),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.conflict(tx, id, base.Version)
		}

		var after T
		if err := tx.Unscoped().First(&after, "id = ?", id).Error; err != nil {
			return err
		}
		if err := AppendAudit(ctx, tx, AuditEntry{
			EntityName: r.schema.Name,
			EntityID:   id,
			Action:     domain.AuditActionSoftDelete,
			OldValues:  domain.Snapshot(&cur),
			NewValues:  domain.Snapshot(&after),
			ActorID:    tc.ActorID,
			TenantID:   base.TenantID,
		}); err != nil {
			return err
		}
		invalidate = base
		return nil
	})
	if err != nil {
		return false, classify("soft_delete", err)
	}
	r.invalidateEntity(ctx, invalidate)
	r.invalidateLists(ctx)
	return true, nil
}

// Restore clears the deletion stamps of a soft-deleted record, bumping
// version and fingerprint and writing a RESTORE audit record in the same
// transaction. Restoring a live record is a no-op that returns it
// unchanged.
func (r *Repository[T, P]) Restore(ctx context.Context, tc *domain.TenantContext, id string) (out *T, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "Restore", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.String("entity.id", id),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "restore", start, err) }()

	var invalidate *domain.Entity
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur T
		if err := r.scope(tx, tc, true).First(&cur, "id = ?", id).Error; err != nil {
			return err
		}
		base := P(&cur).Base()
		if !base.IsDeleted() {
			out = &cur
			return nil
		}

		now := time.Now().UTC()
		nextVersion := base.Version + 1
		res := tx.Unscoped().Model(new(T)).
			Where("id = ? AND version = ?", id, base.Version).
			Updates(map[string]any{
				"deleted_at":  nil,
				"deleted_by":  nil,
				"version":     nextVersion,
				"updated_at":  now,
				"updated_by":  tc.ActorID,
				"fingerprint": domain.ComputeFingerprint(base.ID, nextVersion, now),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.conflict(tx, id, base.Version)
		}

		var after T
		if err := tx.First(&after, "id = ?", id).Error; err != nil {
			return err
		}
		if err := AppendAudit(ctx, tx, AuditEntry{
			EntityName: r.schema.Name,
			EntityID:   id,
			Action:     domain.AuditActionRestore,
			OldValues:  domain.Snapshot(&cur),
			NewValues:  domain.Snapshot(&after),
			ActorID:    tc.ActorID,
			TenantID:   base.TenantID,
		}); err != nil {
			return err
		}
		out, invalidate = &after, base
		return nil
	})
	if err != nil {
		return nil, classify("restore", err)
	}
	if invalidate != nil {
		r.invalidateEntity(ctx, invalidate)
		r.invalidateLists(ctx)
	}
	return out, nil
}

// createOne runs the single-item insert transaction shared by Create and
// BulkCreate.
func (r *Repository[T, P]) createOne(ctx context.Context, tc *domain.TenantContext, row P, action domain.AuditAction) (*T, error) {
	base := row.Base()
	now := time.Now().UTC()
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	base.Version = 1
	base.CreatedAt, base.UpdatedAt = now, now
	base.CreatedBy, base.UpdatedBy = tc.ActorID, tc.ActorID
	base.DeletedAt = gorm.DeletedAt{}
	base.DeletedBy = nil
	if r.schema.TenantScoped {
		// A tenant-bound caller always writes into its own partition; a
		// platform caller may tag the row explicitly or leave it global.
		if tid, ok := tc.Tenant(); ok {
			tag := tid
			base.TenantID = &tag
		}
	} else {
		base.TenantID = nil
	}
	base.Fingerprint = domain.ComputeFingerprint(base.ID, base.Version, base.UpdatedAt)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return AppendAudit(ctx, tx, AuditEntry{
			EntityName: r.schema.Name,
			EntityID:   base.ID,
			Action:     action,
			NewValues:  domain.Snapshot(row),
			ActorID:    tc.ActorID,
			TenantID:   base.TenantID,
		})
	})
	if err != nil {
		return nil, classify("create", err)
	}
	return (*T)(row), nil
}

// normalizeList fills list-option defaults. Bounds validation against
// configured maxima is the service layer's concern; the repository only
// substitutes sane values for zero ones.
func (r *Repository[T, P]) normalizeList(opts ListOptions) (ListOptions, error) {
	if err := validateAssociations(opts.Relations); err != nil {
		return opts, err
	}
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = r.DefaultPageSize
	}
	if opts.SortField == "" {
		opts.SortField = "created_at"
	}
	if opts.SortDir == "" {
		opts.SortDir = "desc"
	}
	return opts, nil
}

// scope applies the soft-delete and tenant predicates shared by every
// read and every in-transaction load. A caller without a tenant operates
// at platform scope and sees all partitions.
func (r *Repository[T, P]) scope(q *gorm.DB, tc *domain.TenantContext, includeDeleted bool) *gorm.DB {
	if includeDeleted {
		q = q.Unscoped()
	}
	if r.schema.TenantScoped {
		if tid, ok := tc.Tenant(); ok {
			q = q.Where("tenant_id = ?", tid)
		}
	}
	return q
}

// conflict builds the version-conflict error for a lost conditional
// update, reloading the stored version so the caller sees what won.
func (r *Repository[T, P]) conflict(tx *gorm.DB, id string, expected int64) error {
	var actual int64
	var fresh T
	if err := tx.Unscoped().First(&fresh, "id = ?", id).Error; err == nil {
		actual = P(&fresh).Base().Version
	}
	return &domain.VersionConflictError{
		EntityName: r.schema.Name,
		EntityID:   id,
		Expected:   expected,
		Actual:     actual,
	}
}

// entityKey is the cache key for one record under one tenant scope.
func (r *Repository[T, P]) entityKey(scope, id string) string {
	return r.cache.Key(r.schema.Name, "id", scope, id)
}

// listKey is the cache key for one normalized list read.
func (r *Repository[T, P]) listKey(scope string, opts ListOptions) string {
	return r.cache.Key(r.schema.Name, "list", scope, cache.HashPart(opts))
}

// invalidateEntity drops the cached copies of one record: its own
// tenant's key and the platform-scope key a tenant-less reader may have
// populated.
func (r *Repository[T, P]) invalidateEntity(ctx context.Context, base *domain.Entity) {
	if base == nil {
		return
	}
	keys := []string{r.entityKey(platformScope, base.ID)}
	if base.TenantID != nil {
		keys = append(keys, r.entityKey(*base.TenantID, base.ID))
	}
	r.cache.Delete(ctx, keys...)
}

// invalidateLists wipes every cached list for this entity across all
// tenant scopes; platform lists span partitions, so partial wipes are
// never safe.
func (r *Repository[T, P]) invalidateLists(ctx context.Context) {
	r.cache.DeleteByPattern(ctx, r.cache.Key(r.schema.Name, "list", "*"))
}

// tenantScopeOf renders the caller's partition as a cache-key segment.
func tenantScopeOf(tc *domain.TenantContext) string {
	if tid, ok := tc.Tenant(); ok {
		return tid
	}
	return platformScope
}

// classify maps a storage error into the package taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	case domain.IsCallerError(err):
		return err
	default:
		return &domain.StoreUnavailableError{Op: op, Err: err}
	}
}

// toInt64 widens the numeric shapes a JSON-decoded patch can carry.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
