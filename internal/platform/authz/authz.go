package authz

import (
	"context"

	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/pkg/cache"
)

// RolePermissions maps a membership role to the permissions it grants.
// This system uses a fixed, small role set rather than the teacher's
// tenant-customizable Role aggregate (spec.md §3.2 defines role as a
// plain string on Membership, not a first-class customizable entity), so
// the mapping is a static table instead of a persisted Role collection.
var RolePermissions = map[string]*Set{
	"tenant_admin": NewSet(
		ResourceDocuments+":"+ActionAll,
		ResourceWorkflows+":"+ActionAll,
		ResourceExecutions+":"+ActionAll,
		ResourceMemberships+":"+ActionAll,
		ResourceFeatureFlags+":"+ActionAll,
	),
	"member": NewSet(
		ResourceDocuments+":"+ActionCreate,
		ResourceDocuments+":"+ActionRead,
		ResourceDocuments+":"+ActionUpdate,
		ResourceDocuments+":"+ActionList,
		ResourceWorkflows+":"+ActionRead,
		ResourceWorkflows+":"+ActionList,
		ResourceExecutions+":"+ActionCreate,
		ResourceExecutions+":"+ActionRead,
		ResourceExecutions+":"+ActionList,
	),
	"viewer": NewSet(
		ResourceDocuments+":"+ActionRead,
		ResourceDocuments+":"+ActionList,
		ResourceWorkflows+":"+ActionRead,
		ResourceWorkflows+":"+ActionList,
		ResourceExecutions+":"+ActionRead,
		ResourceExecutions+":"+ActionList,
	),
}

// PlatformAdminPermissions grants full access, mirroring the teacher's
// PermissionFullAccess for the super-admin role.
var PlatformAdminPermissions = NewSet(ResourceAll + ":" + ActionAll)

// Service implements AuthorizationService (spec.md §4.6): pure
// permission/role checks plus membership queries, backed by the identity
// store's hydrated user and membership records. Effective permission
// sets are cached per (userId, tenantId) so a request that checks
// permission multiple times doesn't re-walk memberships each time
// (spec.md §5's short-TTL permission cache).
type Service struct {
	store *identity.Store
	cache *cache.PermissionCache
}

// NewService wraps store. permCache may be nil, in which case every
// permission check recomputes from memberships.
func NewService(store *identity.Store, permCache *cache.PermissionCache) *Service {
	return &Service{store: store, cache: permCache}
}

// InvalidatePermissions evicts the cached permission set for
// (userID, tenantID), called by the membership create/delete routes
// (internal/routes/tenants) for that pair.
func (s *Service) InvalidatePermissions(userID, tenantID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID, tenantID)
	}
}

// IsPlatformAdmin reports whether user carries the platform_admin role.
func (s *Service) IsPlatformAdmin(user identity.User) bool {
	return user.IsPlatformAdmin()
}

// permissionsFor builds the effective permission set for a user's
// memberships within one tenant, unioning every role the user holds
// there. A platform admin is granted PlatformAdminPermissions regardless
// of tenant, per the implicit-membership rule in spec.md §3.2.
func (s *Service) permissionsFor(ctx context.Context, user identity.User, tenantID string) (*Set, error) {
	if user.IsPlatformAdmin() {
		return PlatformAdminPermissions, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(user.ID, tenantID); ok {
			return NewSet(cached...), nil
		}
	}

	memberships, err := s.store.MembershipFor(ctx, user.ID, tenantID)
	if err != nil {
		return nil, err
	}

	effective := NewSet()
	for _, m := range memberships {
		if rolePerms, ok := RolePermissions[m.Role]; ok {
			effective.Merge(rolePerms)
		}
	}

	if s.cache != nil {
		s.cache.Set(user.ID, tenantID, effective.Strings())
	}
	return effective, nil
}

// HasPermission reports whether user holds permission within tenantID.
func (s *Service) HasPermission(ctx context.Context, user identity.User, tenantID, permission string) (bool, error) {
	required, err := ParsePermission(permission)
	if err != nil {
		return false, err
	}

	effective, err := s.permissionsFor(ctx, user, tenantID)
	if err != nil {
		return false, err
	}
	return effective.Has(required), nil
}

// HasAnyRole reports whether user holds any of roles within tenantID.
// A platform admin always satisfies this check.
func (s *Service) HasAnyRole(ctx context.Context, user identity.User, tenantID string, roles []string) (bool, error) {
	if user.IsPlatformAdmin() {
		return true, nil
	}

	memberships, err := s.store.MembershipFor(ctx, user.ID, tenantID)
	if err != nil {
		return false, err
	}

	wanted := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		wanted[r] = struct{}{}
	}
	for _, m := range memberships {
		if _, ok := wanted[m.Role]; ok {
			return true, nil
		}
	}
	return false, nil
}

// GetUserTenants returns every tenant id the user may act within: every
// active tenant for a platform admin, or the tenants named by the user's
// explicit memberships otherwise.
func (s *Service) GetUserTenants(ctx context.Context, user identity.User) ([]string, error) {
	if user.IsPlatformAdmin() {
		tenants, err := s.store.ListActiveTenants(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(tenants))
		for i, t := range tenants {
			ids[i] = t.ID
		}
		return ids, nil
	}

	memberships, err := s.store.MembershipsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(memberships))
	var ids []string
	for _, m := range memberships {
		if _, ok := seen[m.TenantID]; ok {
			continue
		}
		seen[m.TenantID] = struct{}{}
		ids = append(ids, m.TenantID)
	}
	return ids, nil
}

// HasAccessToTenant reports whether user may act within tenantID: always
// true for a platform admin, otherwise true only if a membership exists.
func (s *Service) HasAccessToTenant(ctx context.Context, user identity.User, tenantID string) (bool, error) {
	if user.IsPlatformAdmin() {
		return true, nil
	}

	memberships, err := s.store.MembershipFor(ctx, user.ID, tenantID)
	if err != nil {
		return false, err
	}
	return len(memberships) > 0, nil
}
