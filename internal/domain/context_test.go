package domain

import "testing"

func TestTenantContext_HasPermission(t *testing.T) {
	tc := &TenantContext{ActorID: "alice", Permissions: []string{"products:read", "products:update"}}

	if !tc.HasPermission("products:read") {
		t.Fatalf("exact grant must match")
	}
	if tc.HasPermission("products:delete") {
		t.Fatalf("missing grant must not match")
	}
	if tc.HasPermission("") {
		t.Fatalf("empty permission name must never match")
	}

	admin := &TenantContext{ActorID: "root", Permissions: []string{PermissionWildcard}}
	if !admin.HasPermission("products:delete") {
		t.Fatalf("wildcard grant must match any permission")
	}

	var nilCtx *TenantContext
	if nilCtx.HasPermission("products:read") {
		t.Fatalf("nil context grants nothing")
	}
}

func TestTenantContext_Tenant(t *testing.T) {
	tc := &TenantContext{ActorID: "alice"}
	if id, ok := tc.Tenant(); ok || id != "" {
		t.Fatalf("tenant-less context must report no tenant, got %q/%v", id, ok)
	}
	tag := "t1"
	tc.TenantID = &tag
	if id, ok := tc.Tenant(); !ok || id != "t1" {
		t.Fatalf("Tenant() = %q/%v; want t1/true", id, ok)
	}
}

func TestSystemContext(t *testing.T) {
	sys := SystemContext("migrator")
	if sys.ActorID != "migrator" {
		t.Fatalf("ActorID = %q; want migrator", sys.ActorID)
	}
	if sys.TenantID != nil {
		t.Fatalf("system context must be tenant-less")
	}
	if !sys.HasPermission("anything:at:all") {
		t.Fatalf("system context must carry the wildcard grant")
	}
}
