// Package repo – aggregate reads.
//
// Aggregates are the most expensive reads and the most tolerant of
// staleness, so they get the longest cache TTL and are not invalidated
// by mutations: a stats panel may lag a write by up to the aggregate
// TTL, which is the accepted trade.
package repo

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mkarras/go-entity-store/internal/domain"
)

// CollectionStats summarizes one entity collection within a tenant scope.
type CollectionStats struct {
	Count        int64      `json:"count"`
	MaxUpdatedAt *time.Time `json:"max_updated_at,omitempty"`
}

// Stats reports the live-record count and most recent update timestamp
// for the caller's scope. Served cache-aside on the aggregate TTL.
func (r *Repository[T, P]) Stats(ctx context.Context, tc *domain.TenantContext) (stats *CollectionStats, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "Stats", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "stats", start, err) }()

	key := r.cache.Key(r.schema.Name, "agg", tenantScopeOf(tc), "stats")
	var cached CollectionStats
	if r.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	out := CollectionStats{}
	if err = r.scope(r.db.WithContext(ctx).Model(new(T)), tc, false).Count(&out.Count).Error; err != nil {
		err = classify("stats", err)
		return nil, err
	}
	if out.Count > 0 {
		// Ordered single-row read instead of MAX(): SQLite reports
		// MAX(datetime) as TEXT, which does not scan into time.Time.
		var row struct {
			UpdatedAt time.Time
		}
		res := r.scope(r.db.WithContext(ctx).Model(new(T)), tc, false).
			Select("updated_at").
			Order("updated_at DESC").
			Limit(1).
			Scan(&row)
		if res.Error != nil {
			err = classify("stats", res.Error)
			return nil, err
		}
		if res.RowsAffected > 0 {
			last := row.UpdatedAt
			out.MaxUpdatedAt = &last
		}
	}

	r.cache.SetJSON(ctx, key, &out, r.cache.AggregateTTL())
	return &out, nil
}

// CountBy groups the caller's live records by one column and counts each
// bucket; NULL values fold into the empty-string bucket. The column name
// is validated before it is interpolated. Served cache-aside on the
// aggregate TTL.
func (r *Repository[T, P]) CountBy(ctx context.Context, tc *domain.TenantContext, column string) (counts map[string]int64, err error) {
	tr := otel.Tracer("repo/Repository")
	ctx, span := tr.Start(ctx, "CountBy", trace.WithAttributes(
		attribute.String("entity.name", r.schema.Name),
		attribute.String("group.column", column),
	))
	defer span.End()
	start := time.Now()
	defer func() { observe(r.schema.Name, "count_by", start, err) }()

	if !identRE.MatchString(column) {
		err = domain.NewValidationError("column", "invalid group column")
		return nil, err
	}

	key := r.cache.Key(r.schema.Name, "agg", tenantScopeOf(tc), "count_by", column)
	cached := map[string]int64{}
	if r.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	var rows []struct {
		Bucket string
		Total  int64
	}
	err = r.scope(r.db.WithContext(ctx).Model(new(T)), tc, false).
		Select(fmt.Sprintf("COALESCE(%s, '') AS bucket, COUNT(*) AS total", column)).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		err = classify("count_by", err)
		return nil, err
	}

	counts = make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Bucket] = row.Total
	}
	r.cache.SetJSON(ctx, key, counts, r.cache.AggregateTTL())
	return counts, nil
}
