// Package services – ProductService
//
// ProductService wires the sample catalog entity into the generic stack:
// creation validation, the publication status machine, the publish
// timestamp, and the delete veto for live products all live here as
// hooks, while storage semantics stay in the repository.
//
// Status machine: draft → active → inactive → active → …; soft delete is
// terminal. A transition to active stamps PublishedAt if absent; a
// transition away from active clears it.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mkarras/go-entity-store/internal/cache"
	"github.com/mkarras/go-entity-store/internal/config"
	"github.com/mkarras/go-entity-store/internal/domain"
	"github.com/mkarras/go-entity-store/internal/repo"
)

// ProductService is the policy layer for the Product entity.
type ProductService struct {
	*Service[domain.Product, *domain.Product]
}

// NewProductService builds the full Product stack on the given handles.
// cfg supplies the pagination and bulk bounds.
func NewProductService(db *gorm.DB, cc *cache.Coordinator, cfg *config.Config, log zerolog.Logger) *ProductService {
	r := repo.NewRepository[domain.Product, *domain.Product](db, cc, log)
	ps := &ProductService{Service: NewService[domain.Product, *domain.Product](r)}
	ps.DefaultPageSize = cfg.DefaultPageSize
	ps.MaxPageSize = cfg.MaxPageSize
	ps.BulkMaxItems = cfg.BulkMaxItems
	ps.Hooks = Hooks[domain.Product]{
		BeforeCreate:   ps.beforeCreate,
		BeforeUpdate:   ps.beforeUpdate,
		ValidateDelete: ps.validateDelete,
	}
	return ps
}

// Publish transitions a product to active.
func (s *ProductService) Publish(ctx context.Context, tc *domain.TenantContext, id string) (*domain.Product, error) {
	return s.Update(ctx, tc, id, map[string]any{"status": string(domain.StatusActive)})
}

// Deactivate transitions a product to inactive.
func (s *ProductService) Deactivate(ctx context.Context, tc *domain.TenantContext, id string) (*domain.Product, error) {
	return s.Update(ctx, tc, id, map[string]any{"status": string(domain.StatusInactive)})
}

// Featured returns one page of live featured products.
func (s *ProductService) Featured(ctx context.Context, tc *domain.TenantContext, page, pageSize int) (*repo.Page[domain.Product], error) {
	return s.FindMany(ctx, tc, repo.ListOptions{
		Page:     page,
		PageSize: pageSize,
		Filters: repo.Filters{
			"featured": true,
			"status":   string(domain.StatusActive),
		},
	})
}

// StatusCounts reports how many products sit in each lifecycle status.
func (s *ProductService) StatusCounts(ctx context.Context, tc *domain.TenantContext) (map[string]int64, error) {
	return s.CountBy(ctx, tc, "status")
}

func (s *ProductService) beforeCreate(_ context.Context, _ *domain.TenantContext, p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if p.Price < 0 {
		return domain.NewValidationError("price", "must not be negative")
	}
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	if !p.Status.Valid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", p.Status))
	}
	// Products born active are published on the spot.
	if p.Status == domain.StatusActive && p.PublishedAt == nil {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
	return nil
}

func (s *ProductService) beforeUpdate(_ context.Context, _ *domain.TenantContext, current *domain.Product, patch map[string]any) error {
	if raw, ok := patch["name"]; ok {
		name, _ := raw.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return domain.NewValidationError("name", "name is required")
		}
		patch["name"] = name
	}
	if raw, ok := patch["price"]; ok {
		if price, ok := toNumber(raw); ok && price < 0 {
			return domain.NewValidationError("price", "must not be negative")
		}
	}

	raw, ok := patch["status"]
	if !ok {
		return nil
	}
	next, ok := statusValue(raw)
	if !ok || !next.Valid() {
		return domain.NewValidationError("status", "unknown status")
	}
	if next == current.Status {
		// Re-asserting the current status is a no-op, not a transition.
		delete(patch, "status")
		return nil
	}
	if !current.Status.CanTransitionTo(next) {
		return &domain.BusinessRuleError{
			Rule:   "status_transition",
			Reason: fmt.Sprintf("cannot transition from %s to %s", current.Status, next),
		}
	}
	patch["status"] = string(next)
	if next == domain.StatusActive {
		if current.PublishedAt == nil {
			patch["published_at"] = time.Now().UTC()
		}
	} else if current.Status == domain.StatusActive {
		patch["published_at"] = nil
	}
	return nil
}

func (s *ProductService) validateDelete(_ context.Context, _ *domain.TenantContext, current *domain.Product) error {
	if current.Status == domain.StatusActive {
		return &domain.BusinessRuleError{
			Rule:   "active_product_retained",
			Reason: "deactivate the product before deleting it",
		}
	}
	return nil
}

// statusValue reads a status out of a patch value, which arrives as a
// plain string from decoded JSON or as a domain.Status from Go callers.
func statusValue(v any) (domain.Status, bool) {
	switch s := v.(type) {
	case string:
		return domain.Status(s), true
	case domain.Status:
		return s, true
	default:
		return "", false
	}
}

// toNumber widens the numeric shapes a decoded patch can carry.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
