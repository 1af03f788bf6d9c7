// Package platform implements the platform-admin-only surface from
// spec.md §6.1 and SPEC_FULL.md §6.1's feature-flag admin expansion:
// cross-tenant tenant management, platform-wide stats, and feature-flag
// administration.
package platform

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/featureflags"
	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/routes/httpkit"
	"github.com/inspectra/platform-core/pkg/auth"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

type Dependencies struct {
	Users *identity.Store
	Flags *featureflags.Store
}

var deps *Dependencies

func Configure(d Dependencies) {
	deps = &d
}

func init() {
	router.Register(router.Module{
		Name:   "platform",
		Prefix: "/api/platform",
		Routes: []router.Route{
			{Method: http.MethodGet, Path: "/tenants", Policy: router.PolicyRequirePlatformAdmin, Handler: handleListTenants},
			{Method: http.MethodPost, Path: "/tenants", Policy: router.PolicyRequirePlatformAdmin, Handler: handleCreateTenant},
			{Method: http.MethodPut, Path: "/tenants/{id}", Policy: router.PolicyRequirePlatformAdmin, Handler: handleUpdateTenant},
			{Method: http.MethodDelete, Path: "/tenants/{id}", Policy: router.PolicyRequirePlatformAdmin, Handler: handleDeactivateTenant},
			{Method: http.MethodGet, Path: "/stats", Policy: router.PolicyRequirePlatformAdmin, Handler: handleStats},
			{Method: http.MethodGet, Path: "/feature-flags", Policy: router.PolicyRequirePlatformAdmin, Handler: handleListFlags},
			{Method: http.MethodPut, Path: "/feature-flags/{key}", Policy: router.PolicyRequirePlatformAdmin, Handler: handleSetFlag},
		},
	})
}

// handleListTenants implements `GET /api/platform/tenants`. Platform
// admins see every active tenant by default, matching the implicit
// all-active-tenants membership rule in spec.md §3.2.
func handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := deps.Users.ListActiveTenants(r.Context())
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "listing tenants"))
		return
	}
	response.OK(w, map[string]interface{}{"tenants": tenants})
}

type createTenantRequest struct {
	Slug   string         `json:"slug" validate:"required,alphanum"`
	Name   string         `json:"name" validate:"required"`
	Quotas map[string]int `json:"quotas,omitempty"`
}

// handleCreateTenant implements `POST /api/platform/tenants`.
func handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	tenant, err := deps.Users.CreateTenant(r.Context(), identity.Tenant{
		Slug:   req.Slug,
		Name:   req.Name,
		Quotas: req.Quotas,
	})
	if err != nil {
		if err == identity.ErrTenantSlugTaken {
			response.Error(w, errors.ErrAlreadyExists("tenant with that slug"))
			return
		}
		response.Error(w, errors.ErrInternalWrap(err, "creating tenant"))
		return
	}
	response.Created(w, tenant)
}

type updateTenantRequest struct {
	Name   string         `json:"name,omitempty"`
	Status string         `json:"status,omitempty" validate:"omitempty,oneof=active suspended inactive"`
	Quotas map[string]int `json:"quotas,omitempty"`
}

// handleUpdateTenant implements `PUT /api/platform/tenants/{id}`.
func handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	var req updateTenantRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	set := map[string]interface{}{}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Status != "" {
		set["status"] = req.Status
	}
	if req.Quotas != nil {
		set["quotas"] = req.Quotas
	}
	if len(set) == 0 {
		response.Error(w, errors.ErrBadRequest("no fields to update"))
		return
	}

	updated, err := deps.Users.UpdateTenant(r.Context(), chi.URLParam(r, "id"), set)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

// handleDeactivateTenant implements `DELETE /api/platform/tenants/{id}`
// as a status transition to inactive rather than a physical delete —
// tenants are still referenced by every document/execution they own.
func handleDeactivateTenant(w http.ResponseWriter, r *http.Request) {
	updated, err := deps.Users.UpdateTenant(r.Context(), chi.URLParam(r, "id"), map[string]interface{}{
		"status": identity.TenantStatusInactive,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}

// handleStats implements `GET /api/platform/stats`: counts across the
// identity store's tenant/user collections, the only cross-tenant
// aggregates a platform admin sees that ordinary tenant-scoped routes
// never expose (spec.md §4.6's "platform admin bypasses the automatic
// tenant filter").
func handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantCount, err := deps.Users.CountTenants(ctx)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "counting tenants"))
		return
	}
	userCount, err := deps.Users.CountUsers(ctx)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "counting users"))
		return
	}
	activeTenants, err := deps.Users.ListActiveTenants(ctx)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "listing active tenants"))
		return
	}

	response.OK(w, map[string]interface{}{
		"tenantCount":       tenantCount,
		"activeTenantCount": len(activeTenants),
		"userCount":         userCount,
	})
}

// handleListFlags implements `GET /api/platform/feature-flags`
// (SPEC_FULL.md §6.1 expansion).
func handleListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := deps.Flags.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"flags": flags})
}

type setFlagRequest struct {
	TenantID          string `json:"tenantId,omitempty"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rolloutPercentage,omitempty" validate:"min=0,max=100"`
}

// handleSetFlag implements `PUT /api/platform/feature-flags/{key}`
// (SPEC_FULL.md §6.1 expansion): an absent tenantId sets the global flag.
func handleSetFlag(w http.ResponseWriter, r *http.Request) {
	var req setFlagRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	updatedBy := ""
	if claims != nil {
		updatedBy = claims.UserID
	}

	flag, err := deps.Flags.Set(r.Context(), chi.URLParam(r, "key"), req.TenantID, req.Enabled, req.RolloutPercentage, updatedBy)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, flag)
}
