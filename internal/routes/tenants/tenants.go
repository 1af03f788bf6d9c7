// Package tenants implements the tenant-discovery endpoint spec.md §4.6
// describes as part of login (given an email, list the tenants that
// account may enter) plus membership grant/revoke, the only mutation
// surface for the dedicated `memberships` collection (spec.md §3.2 —
// a first-class, create/delete-only collection, distinct from the
// polymorphic `documents` store §6.1 parameterizes by {type}).
package tenants

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/authz"
	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/internal/routes/httpkit"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

type Dependencies struct {
	Users *identity.Store
	Authz *authz.Service
}

var deps *Dependencies

func Configure(d Dependencies) {
	deps = &d
}

func init() {
	router.Register(router.Module{
		Name:   "tenants",
		Prefix: "/api/tenants",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/discover", Policy: router.PolicyPublic, Handler: handleDiscover},
			{Method: http.MethodPost, Path: "/memberships", Policy: router.PolicyRequireTenantAdmin, Handler: handleCreateMembership},
			{Method: http.MethodDelete, Path: "/memberships/{userId}/{role}", Policy: router.PolicyRequireTenantAdmin, Handler: handleDeleteMembership},
		},
	})
}

type tenantOption struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// handleDiscover implements
// `GET /api/tenants/discover?email=… -> {tenants:[{slug,name}]}` or, for a
// single match, `{tenantSlug,tenantName}` (spec.md §6.1), following the
// resolution rule in §4.6: platform admins see every active tenant,
// everyone else sees only the tenants they hold a membership in.
func handleDiscover(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		response.Error(w, errors.ErrBadRequest("email query parameter is required"))
		return
	}

	ctx := r.Context()
	user, err := deps.Users.GetUserByEmail(ctx, email)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "looking up user"))
		return
	}
	if user == nil {
		response.OK(w, map[string]interface{}{"tenants": []tenantOption{}})
		return
	}

	options, err := candidateTenants(ctx, *user)
	if err != nil {
		response.Error(w, err)
		return
	}

	if len(options) == 1 {
		response.OK(w, map[string]string{"tenantSlug": options[0].Slug, "tenantName": options[0].Name})
		return
	}
	response.OK(w, map[string]interface{}{"tenants": options})
}

func candidateTenants(ctx context.Context, user identity.User) ([]tenantOption, error) {
	if user.IsPlatformAdmin() {
		active, err := deps.Users.ListActiveTenants(ctx)
		if err != nil {
			return nil, errors.ErrInternalWrap(err, "listing active tenants")
		}
		options := make([]tenantOption, len(active))
		for i, t := range active {
			options[i] = tenantOption{Slug: t.Slug, Name: t.Name}
		}
		return options, nil
	}

	memberships, err := deps.Users.MembershipsForUser(ctx, user.ID)
	if err != nil {
		return nil, errors.ErrInternalWrap(err, "listing memberships")
	}

	seen := map[string]bool{}
	var options []tenantOption
	for _, m := range memberships {
		if seen[m.TenantID] {
			continue
		}
		seen[m.TenantID] = true

		tenant, err := deps.Users.GetTenantByID(ctx, m.TenantID)
		if err != nil {
			return nil, errors.ErrInternalWrap(err, "looking up tenant")
		}
		if tenant == nil || !tenant.IsActive() {
			continue
		}
		options = append(options, tenantOption{Slug: tenant.Slug, Name: tenant.Name})
	}
	return options, nil
}

type createMembershipRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

// handleCreateMembership implements `POST /api/tenants/memberships
// {userId,role} -> Membership` (spec.md §3.2): grants the requesting
// tenant admin's tenant to userID under role. Memberships are
// create-only, so a duplicate grant is rejected rather than upserted.
func handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	var req createMembershipRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	tenantID := tenancy.MustFromContext(r.Context()).TenantID
	created, err := deps.Users.CreateMembership(r.Context(), identity.Membership{
		UserID:   req.UserID,
		TenantID: tenantID,
		Role:     req.Role,
	})
	if err != nil {
		if err == identity.ErrMembershipDuplicate {
			response.Error(w, errors.ErrConflict("membership already exists"))
			return
		}
		response.Error(w, errors.ErrInternalWrap(err, "creating membership"))
		return
	}

	deps.Authz.InvalidatePermissions(created.UserID, created.TenantID)
	response.Created(w, created)
}

// handleDeleteMembership implements
// `DELETE /api/tenants/memberships/{userId}/{role} -> 204` (spec.md
// §3.2), revoking the grant and evicting the cached effective
// permission set it fed (SPEC_FULL.md §4.6).
func handleDeleteMembership(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	role := chi.URLParam(r, "role")
	tenantID := tenancy.MustFromContext(r.Context()).TenantID

	if err := deps.Users.DeleteMembership(r.Context(), userID, tenantID, role); err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "deleting membership"))
		return
	}

	deps.Authz.InvalidatePermissions(userID, tenantID)
	response.NoContent(w)
}
