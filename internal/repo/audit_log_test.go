package repo

import (
	"context"
	"testing"

	"github.com/mkarras/go-entity-store/internal/domain"
)

func TestAppendAudit_ComputesDiffAndPersists(t *testing.T) {
	db := newProductRepoDB(t, &domain.AuditRecord{})
	ctx := context.Background()

	tenant := "t1"
	err := AppendAudit(ctx, db, AuditEntry{
		EntityName: "product",
		EntityID:   "p1",
		Action:     domain.AuditActionUpdate,
		OldValues:  map[string]any{"name": "Old", "price": float64(100), "status": "draft"},
		NewValues:  map[string]any{"name": "New", "price": float64(100), "owner": "bob"},
		ActorID:    "alice",
		TenantID:   &tenant,
	})
	if err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	recs, err := ListAuditByEntity(ctx, db, "product", "p1")
	if err != nil {
		t.Fatalf("ListAuditByEntity: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID == "" || rec.ActorID != "alice" || rec.TenantID == nil || *rec.TenantID != "t1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// name changed, owner added, status removed; price untouched.
	want := []string{"name", "owner", "status"}
	if len(rec.ChangedFields) != len(want) {
		t.Fatalf("ChangedFields = %v, want %v", rec.ChangedFields, want)
	}
	for i, f := range want {
		if rec.ChangedFields[i] != f {
			t.Fatalf("ChangedFields = %v, want sorted %v", rec.ChangedFields, want)
		}
	}
}

func TestAppendAudit_ErrorWithoutTable(t *testing.T) {
	db := newProductRepoDB(t /* no migrations */)
	if err := AppendAudit(context.Background(), db, AuditEntry{
		EntityName: "product",
		EntityID:   "p1",
		Action:     domain.AuditActionCreate,
	}); err == nil {
		t.Fatalf("expected error when audit table is missing")
	}
}

func TestAuditTrail_FollowsEntityLifecycle(t *testing.T) {
	r, db := newProductRepo(t)
	ctx := context.Background()
	tc := tenantCtx("alice", "t1")

	created, err := r.Create(ctx, tc, &domain.Product{Name: "Widget"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Update(ctx, tc, created.ID, map[string]any{"name": "Widget II"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := r.SoftDelete(ctx, tc, created.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	recs, err := ListAuditByEntity(ctx, db, "product", created.ID)
	if err != nil {
		t.Fatalf("ListAuditByEntity: %v", err)
	}
	wantSeq := []domain.AuditAction{
		domain.AuditActionCreate,
		domain.AuditActionUpdate,
		domain.AuditActionSoftDelete,
	}
	if len(recs) != len(wantSeq) {
		t.Fatalf("expected %d records, got %d", len(wantSeq), len(recs))
	}
	for i, want := range wantSeq {
		if recs[i].Action != want {
			t.Fatalf("record %d action = %s, want %s (oldest first)", i, recs[i].Action, want)
		}
	}

	recent, err := ListRecentAudit(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRecentAudit: %v", err)
	}
	if len(recent) != 2 || recent[0].Action != domain.AuditActionSoftDelete {
		t.Fatalf("recent trail must be newest first, got %+v", recent)
	}

	// A non-positive limit falls back to the default window.
	all, err := ListRecentAudit(ctx, db, 0)
	if err != nil {
		t.Fatalf("ListRecentAudit default: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("default window must cover the trail, got %d", len(all))
	}
}
