// Package services – generic entity service.
//
// Service[T] is the policy layer in front of the generic repository: it
// validates identifiers and pagination bounds, enforces per-operation
// permissions, and runs the entity's lifecycle hooks. Storage semantics
// (transactions, audit, caching, tenant scoping) stay in the repository;
// everything a concrete entity wants to say about its own rules lives in
// its Hooks.
//
// Every check rejects before the repository is touched, so a vetoed
// operation never opens a transaction.
package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mkarras/go-entity-store/internal/domain"
	"github.com/mkarras/go-entity-store/internal/repo"
)

// Fallback bounds applied when the caller does not configure the service.
const (
	defaultPageSize     = 20
	defaultMaxPageSize  = 500
	defaultBulkMaxItems = 100
)

// EntityRepo defines the repository contract required by Service.
// *repo.Repository[T, P] is the production implementation.
type EntityRepo[T any, P domain.Record[T]] interface {
	Schema() domain.Schema
	FindByID(ctx context.Context, tc *domain.TenantContext, id string, opts repo.FindOptions) (*T, error)
	FindMany(ctx context.Context, tc *domain.TenantContext, opts repo.ListOptions) (*repo.Page[T], error)
	Create(ctx context.Context, tc *domain.TenantContext, row P) (*T, error)
	Update(ctx context.Context, tc *domain.TenantContext, id string, patch map[string]any) (*T, error)
	SoftDelete(ctx context.Context, tc *domain.TenantContext, id string) (bool, error)
	Restore(ctx context.Context, tc *domain.TenantContext, id string) (*T, error)
	BulkCreate(ctx context.Context, tc *domain.TenantContext, items []P) (*repo.BulkResult[T], error)
	Stats(ctx context.Context, tc *domain.TenantContext) (*repo.CollectionStats, error)
	CountBy(ctx context.Context, tc *domain.TenantContext, column string) (map[string]int64, error)
}

var _ EntityRepo[domain.Product, *domain.Product] = (*repo.Repository[domain.Product, *domain.Product])(nil)

// Hooks carries the per-entity lifecycle callbacks. Unset hooks are
// no-ops. Before* hooks may mutate their arguments and veto the
// operation by returning an error (typically a ValidationError or
// BusinessRuleError); After* hooks are notification-only and run once
// the mutation has committed.
type Hooks[T any] struct {
	BeforeCreate func(ctx context.Context, tc *domain.TenantContext, row *T) error
	AfterCreate  func(ctx context.Context, tc *domain.TenantContext, row *T)
	BeforeUpdate func(ctx context.Context, tc *domain.TenantContext, current *T, patch map[string]any) error
	AfterUpdate  func(ctx context.Context, tc *domain.TenantContext, row *T)
	BeforeDelete func(ctx context.Context, tc *domain.TenantContext, current *T) error
	AfterDelete  func(ctx context.Context, tc *domain.TenantContext, id string)

	// ValidateDelete vetoes deletion based on entity state. It runs
	// strictly before BeforeDelete and before the soft-delete
	// transaction, so a veto never touches storage.
	ValidateDelete func(ctx context.Context, tc *domain.TenantContext, current *T) error

	// ApplyBusinessRules runs after every read (single record and each
	// list item) and may redact fields or reject access outright.
	ApplyBusinessRules func(ctx context.Context, tc *domain.TenantContext, row *T) error
}

// Service provides the policy-checked operations for one entity type.
type Service[T any, P domain.Record[T]] struct {
	// Repo is the entity repository operations are delegated to.
	Repo EntityRepo[T, P]
	// Hooks are the entity's lifecycle callbacks.
	Hooks Hooks[T]

	// DefaultPageSize substitutes a zero ListOptions.PageSize.
	DefaultPageSize int
	// MaxPageSize caps the page size a caller may request.
	MaxPageSize int
	// BulkMaxItems caps the item count of one BulkCreate call.
	BulkMaxItems int
}

// NewService constructs a Service with default bounds; callers wire
// configured bounds through the exported fields.
func NewService[T any, P domain.Record[T]](r EntityRepo[T, P]) *Service[T, P] {
	return &Service[T, P]{
		Repo:            r,
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     defaultMaxPageSize,
		BulkMaxItems:    defaultBulkMaxItems,
	}
}

// FindByID returns one record after the read permission check and the
// entity's post-read business rules.
func (s *Service[T, P]) FindByID(ctx context.Context, tc *domain.TenantContext, id string, opts repo.FindOptions) (*T, error) {
	if err := s.require(tc, "read"); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	row, err := s.Repo.FindByID(ctx, tc, id, opts)
	if err != nil {
		return nil, err
	}
	if err := s.applyBusinessRules(ctx, tc, row); err != nil {
		return nil, err
	}
	return row, nil
}

// FindMany returns one validated, policy-checked page of records.
func (s *Service[T, P]) FindMany(ctx context.Context, tc *domain.TenantContext, opts repo.ListOptions) (*repo.Page[T], error) {
	if err := s.require(tc, "list"); err != nil {
		return nil, err
	}
	opts, err := s.boundPage(opts)
	if err != nil {
		return nil, err
	}
	page, err := s.Repo.FindMany(ctx, tc, opts)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if err := s.applyBusinessRules(ctx, tc, &page.Items[i]); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// Create persists a new record after the entity's BeforeCreate hook.
func (s *Service[T, P]) Create(ctx context.Context, tc *domain.TenantContext, row P) (*T, error) {
	if err := s.require(tc, "create"); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.NewValidationError("item", "item is required")
	}
	if s.Hooks.BeforeCreate != nil {
		if err := s.Hooks.BeforeCreate(ctx, tc, (*T)(row)); err != nil {
			return nil, err
		}
	}
	created, err := s.Repo.Create(ctx, tc, row)
	if err != nil {
		return nil, err
	}
	if s.Hooks.AfterCreate != nil {
		s.Hooks.AfterCreate(ctx, tc, created)
	}
	return created, nil
}

// Update applies a patch to one record. The entity's BeforeUpdate hook
// sees the current row and may rewrite the patch before it reaches the
// repository.
func (s *Service[T, P]) Update(ctx context.Context, tc *domain.TenantContext, id string, patch map[string]any) (*T, error) {
	if err := s.require(tc, "update"); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if patch == nil {
		patch = map[string]any{}
	}
	if s.Hooks.BeforeUpdate != nil {
		current, err := s.Repo.FindByID(ctx, tc, id, repo.FindOptions{Uncached: true})
		if err != nil {
			return nil, err
		}
		if err := s.Hooks.BeforeUpdate(ctx, tc, current, patch); err != nil {
			return nil, err
		}
	}
	updated, err := s.Repo.Update(ctx, tc, id, patch)
	if err != nil {
		return nil, err
	}
	if s.Hooks.AfterUpdate != nil {
		s.Hooks.AfterUpdate(ctx, tc, updated)
	}
	return updated, nil
}

// SoftDelete marks one record deleted, subject to the entity's
// ValidateDelete veto and BeforeDelete hook.
func (s *Service[T, P]) SoftDelete(ctx context.Context, tc *domain.TenantContext, id string) (bool, error) {
	if err := s.require(tc, "delete"); err != nil {
		return false, err
	}
	if err := validateID(id); err != nil {
		return false, err
	}
	if s.Hooks.ValidateDelete != nil || s.Hooks.BeforeDelete != nil {
		current, err := s.Repo.FindByID(ctx, tc, id, repo.FindOptions{Uncached: true})
		if err != nil {
			return false, err
		}
		if s.Hooks.ValidateDelete != nil {
			if err := s.Hooks.ValidateDelete(ctx, tc, current); err != nil {
				return false, err
			}
		}
		if s.Hooks.BeforeDelete != nil {
			if err := s.Hooks.BeforeDelete(ctx, tc, current); err != nil {
				return false, err
			}
		}
	}
	ok, err := s.Repo.SoftDelete(ctx, tc, id)
	if err != nil {
		return false, err
	}
	if s.Hooks.AfterDelete != nil {
		s.Hooks.AfterDelete(ctx, tc, id)
	}
	return ok, nil
}

// Restore brings a soft-deleted record back. It is an update-kind
// mutation and requires the update permission.
func (s *Service[T, P]) Restore(ctx context.Context, tc *domain.TenantContext, id string) (*T, error) {
	if err := s.require(tc, "update"); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.Repo.Restore(ctx, tc, id)
}

// BulkCreate runs the BeforeCreate hook per item, delegates the
// survivors to the repository's per-item transactions, and merges both
// failure sets back into input order.
func (s *Service[T, P]) BulkCreate(ctx context.Context, tc *domain.TenantContext, items []P) (*repo.BulkResult[T], error) {
	if err := s.require(tc, "bulk_create"); err != nil {
		return nil, err
	}
	limit := s.BulkMaxItems
	if limit <= 0 {
		limit = defaultBulkMaxItems
	}
	if len(items) > limit {
		return nil, domain.NewValidationError("items", fmt.Sprintf("at most %d items per bulk create", limit))
	}

	accepted := make([]P, 0, len(items))
	inputIdx := make([]int, 0, len(items))
	var failures []repo.BulkFailure[T]
	for i, item := range items {
		if item == nil {
			failures = append(failures, repo.BulkFailure[T]{Index: i, Error: "nil item"})
			continue
		}
		if s.Hooks.BeforeCreate != nil {
			if err := s.Hooks.BeforeCreate(ctx, tc, (*T)(item)); err != nil {
				failures = append(failures, repo.BulkFailure[T]{Index: i, Item: (*T)(item), Error: err.Error()})
				continue
			}
		}
		accepted = append(accepted, item)
		inputIdx = append(inputIdx, i)
	}

	res, err := s.Repo.BulkCreate(ctx, tc, accepted)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failures {
		f.Index = inputIdx[f.Index]
		failures = append(failures, f)
	}
	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	out := &repo.BulkResult[T]{
		Created:   res.Created,
		Failures:  failures,
		Total:     len(items),
		Succeeded: res.Succeeded,
		Failed:    len(failures),
	}
	if s.Hooks.AfterCreate != nil {
		for _, created := range out.Created {
			s.Hooks.AfterCreate(ctx, tc, created)
		}
	}
	return out, nil
}

// Stats reports the collection aggregate for the caller's scope.
func (s *Service[T, P]) Stats(ctx context.Context, tc *domain.TenantContext) (*repo.CollectionStats, error) {
	if err := s.require(tc, "read"); err != nil {
		return nil, err
	}
	return s.Repo.Stats(ctx, tc)
}

// CountBy reports per-bucket counts for one column in the caller's scope.
func (s *Service[T, P]) CountBy(ctx context.Context, tc *domain.TenantContext, column string) (map[string]int64, error) {
	if err := s.require(tc, "read"); err != nil {
		return nil, err
	}
	return s.Repo.CountBy(ctx, tc, column)
}

// boundPage validates pagination bounds and substitutes configured
// defaults for zero values. Negative or over-limit values are caller
// errors, not silently clamped.
func (s *Service[T, P]) boundPage(opts repo.ListOptions) (repo.ListOptions, error) {
	if opts.Page < 0 {
		return opts, domain.NewValidationError("page", "must not be negative")
	}
	if opts.PageSize < 0 {
		return opts, domain.NewValidationError("page_size", "must not be negative")
	}
	max := s.MaxPageSize
	if max <= 0 {
		max = defaultMaxPageSize
	}
	if opts.PageSize > max {
		return opts, domain.NewValidationError("page_size", fmt.Sprintf("must not exceed %d", max))
	}
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.PageSize == 0 {
		if s.DefaultPageSize > 0 {
			opts.PageSize = s.DefaultPageSize
		} else {
			opts.PageSize = defaultPageSize
		}
	}
	return opts, nil
}

// require checks the "<entity>:<verb>" capability for the caller.
func (s *Service[T, P]) require(tc *domain.TenantContext, verb string) error {
	perm := s.Repo.Schema().Name + ":" + verb
	if !tc.HasPermission(perm) {
		return &domain.PermissionError{Permission: perm}
	}
	return nil
}

func (s *Service[T, P]) applyBusinessRules(ctx context.Context, tc *domain.TenantContext, row *T) error {
	if s.Hooks.ApplyBusinessRules == nil {
		return nil
	}
	return s.Hooks.ApplyBusinessRules(ctx, tc, row)
}

// validateID rejects identifiers that are not UUIDs before any
// repository work happens.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidationError("id", "must be a valid UUID")
	}
	return nil
}
