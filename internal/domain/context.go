// Package domain – caller context.
//
// TenantContext carries the identity, tenant scope, and capability set of the
// caller through every repository and service operation. It is populated by
// the controller layer (from the authenticated request) and passed explicitly
// rather than smuggled through context.Context, so the scoping rules stay
// visible in every signature.
package domain

import "slices"

// PermissionWildcard satisfies every permission check.
const PermissionWildcard = "*"

// TenantContext describes the caller of a repository or service operation.
//
// Fields:
//   - ActorID: identifier stamped into created_by/updated_by/deleted_by and
//     audit records. Never user-supplied payload data.
//   - TenantID: tenant scope of the caller. nil means platform scope: the
//     caller is not confined to a tenant partition (system jobs, platform
//     administrators).
//   - Permissions: capability strings ("product:read", "product:update", …).
//     The wildcard "*" grants everything.
//   - RequestID / ClientIP / UserAgent: request metadata carried for audit
//     and log correlation; the core never branches on them.
type TenantContext struct {
	ActorID     string
	TenantID    *string
	Permissions []string
	RequestID   string
	ClientIP    string
	UserAgent   string
}

// SystemContext returns a platform-scoped context with the wildcard
// permission, for internal jobs that operate outside any tenant partition.
func SystemContext(actorID string) *TenantContext {
	return &TenantContext{ActorID: actorID, Permissions: []string{PermissionWildcard}}
}

// HasPermission reports whether the caller holds the named capability.
// The wildcard "*" or an exact match satisfies the check; a nil context
// or empty capability name never does.
func (tc *TenantContext) HasPermission(permission string) bool {
	if tc == nil || permission == "" {
		return false
	}
	return slices.Contains(tc.Permissions, PermissionWildcard) ||
		slices.Contains(tc.Permissions, permission)
}

// Tenant returns the caller's tenant tag and whether one is set.
func (tc *TenantContext) Tenant() (string, bool) {
	if tc == nil || tc.TenantID == nil {
		return "", false
	}
	return *tc.TenantID, true
}
