// Package auth implements the AuthService HTTP surface from spec.md
// §4.6/§6.1: login, current-user lookup, token refresh, and profile
// update, grounded on the teacher's customer_handlers.go thin-handler
// style and internal/iam/interfaces/http/common/request.go's validated
// decode path.
package auth

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/inspectra/platform-core/internal/platform/authz"
	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/internal/platform/router"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/internal/routes/httpkit"
	"github.com/inspectra/platform-core/pkg/auth"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

// Dependencies bundles the services the auth routes need. Configure sets
// this package-level pointer before the server starts accepting
// connections; the routes themselves are registered at init() time,
// following the route-module contract in spec.md §4.7.
type Dependencies struct {
	Users *identity.Store
	Authz *authz.Service
	JWT   *auth.JWTManager
}

var deps *Dependencies

// Configure wires d as the dependencies every handler in this package
// uses. Must be called once during server bootstrap before Mount.
func Configure(d Dependencies) {
	deps = &d
}

func init() {
	router.Register(router.Module{
		Name:   "auth",
		Prefix: "/api/auth",
		Routes: []router.Route{
			{Method: http.MethodPost, Path: "/login", Policy: router.PolicyPublic, Handler: handleLogin},
			{Method: http.MethodGet, Path: "/me", Policy: router.PolicyOptionalAuth, Handler: handleMe},
			{Method: http.MethodPost, Path: "/refresh", Policy: router.PolicyPublic, Handler: handleRefresh},
			{Method: http.MethodPut, Path: "/profile", Policy: router.PolicyOptionalAuth, Handler: handleUpdateProfile},
		},
	})
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	TenantSlug string `json:"tenantSlug,omitempty"`
}

type loginResponse struct {
	Token *auth.TokenPair `json:"token"`
	User  identity.User   `json:"user"`
}

// handleLogin implements spec.md §6.1's
// `POST /api/auth/login {email, password, tenantSlug?} -> {token, user}`,
// using the tenant-resolution rule from §4.6: an explicit tenantSlug is
// validated against the user's access; otherwise a single matching tenant
// is auto-selected and an ambiguous or absent match issues a tenant-less
// token the client must narrow later via X-Tenant-ID/X-Tenant-Slug.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	ctx := r.Context()
	user, err := deps.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "looking up user"))
		return
	}
	if user == nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		response.Error(w, errors.ErrUnauthorized("invalid email or password"))
		return
	}

	tenantID, err := resolveLoginTenant(ctx, *user, req.TenantSlug)
	if err != nil {
		response.Error(w, err)
		return
	}

	roles, err := rolesFor(ctx, *user, tenantID)
	if err != nil {
		response.Error(w, err)
		return
	}

	pair, err := deps.JWT.GenerateTokenPairForPlatformRole(user.ID, tenantID, user.Email, roles, user.PlatformRole)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "issuing token"))
		return
	}

	response.OK(w, loginResponse{Token: pair, User: *user})
}

func resolveLoginTenant(ctx context.Context, user identity.User, tenantSlug string) (string, error) {
	if tenantSlug != "" {
		tenant, err := deps.Users.GetTenantBySlug(ctx, tenantSlug)
		if err != nil {
			return "", errors.ErrInternalWrap(err, "resolving tenant")
		}
		if tenant == nil {
			return "", errors.ErrNotFound("tenant")
		}
		ok, err := deps.Authz.HasAccessToTenant(ctx, user, tenant.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.ErrForbidden("no access to tenant")
		}
		return tenant.ID, nil
	}

	tenantIDs, err := deps.Authz.GetUserTenants(ctx, user)
	if err != nil {
		return "", errors.ErrInternalWrap(err, "listing user tenants")
	}
	if len(tenantIDs) == 1 {
		return tenantIDs[0], nil
	}
	return "", nil
}

func rolesFor(ctx context.Context, user identity.User, tenantID string) ([]string, error) {
	if tenantID == "" || user.IsPlatformAdmin() {
		return nil, nil
	}
	memberships, err := deps.Users.MembershipFor(ctx, user.ID, tenantID)
	if err != nil {
		return nil, errors.ErrInternalWrap(err, "loading memberships")
	}
	roles := make([]string, len(memberships))
	for i, m := range memberships {
		roles[i] = m.Role
	}
	return roles, nil
}

type meResponse struct {
	User   *identity.User `json:"user"`
	Tenant *tenantSummary `json:"tenant,omitempty"`
}

type tenantSummary struct {
	TenantID        string `json:"tenantId"`
	IsPlatformAdmin bool   `json:"isPlatformAdmin"`
}

// handleMe implements `GET /api/auth/me` — authentication is mandatory
// but a resolved tenant is not (the client may call this immediately
// after a tenant-less login to discover which tenants to offer), so the
// route is mounted PolicyOptionalAuth and the handler itself enforces
// that a bearer token was present.
func handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, errors.ErrUnauthorized("authentication required"))
		return
	}

	user, err := deps.Users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "looking up user"))
		return
	}
	if user == nil {
		response.Error(w, errors.ErrNotFound("user"))
		return
	}

	resp := meResponse{User: user}
	if rc, ok := tenancy.FromContext(r.Context()); ok && rc.Tenant.TenantID != "" {
		resp.Tenant = &tenantSummary{TenantID: rc.Tenant.TenantID, IsPlatformAdmin: rc.Tenant.IsPlatformAdmin}
	}
	response.OK(w, resp)
}

// handleRefresh implements `POST /api/auth/refresh`. A refresh token is
// not an access token, so this route is PolicyPublic and extracts the
// bearer value directly rather than going through the access-token
// authentication middleware every other PolicyRequireAuth route uses.
func handleRefresh(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if len(header) < 8 || header[:7] != "Bearer " {
		response.Error(w, errors.ErrUnauthorized("missing bearer refresh token"))
		return
	}

	pair, err := deps.JWT.RefreshTokenPair(header[7:])
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, pair)
}

type updateProfileRequest struct {
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty" validate:"omitempty,min=8"`
}

// handleUpdateProfile implements `PUT /api/auth/profile`. PasswordHash and
// PlatformRole are never accepted from request input (spec.md §6.1's
// "sensitive fields forbidden"); a password change additionally requires
// the caller to present their current password.
func handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, errors.ErrUnauthorized("authentication required"))
		return
	}

	var req updateProfileRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	ctx := r.Context()
	user, err := deps.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		response.Error(w, errors.ErrInternalWrap(err, "looking up user"))
		return
	}
	if user == nil {
		response.Error(w, errors.ErrNotFound("user"))
		return
	}

	set := bson.M{}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" || !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
			response.Error(w, errors.ErrUnauthorized("current password is incorrect"))
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			response.Error(w, errors.ErrInternalWrap(err, "hashing password"))
			return
		}
		set["password_hash"] = hash
	}

	if len(set) == 0 {
		response.OK(w, user)
		return
	}

	updated, err := deps.Users.UpdateUser(ctx, user.ID, set)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, updated)
}
