package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectra/platform-core/internal/platform/authz"
	"github.com/inspectra/platform-core/internal/platform/identity"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/pkg/auth"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/response"
)

// Deps bundles the shared services route-policy enforcement needs,
// passed once at mount time rather than threaded through every route
// module.
type Deps struct {
	JWT       *auth.JWTManager
	Tenancy   *tenancy.Middleware
	Authz     *authz.Service
	Users     *identity.Store
}

// Mount wires every registered module onto mux, wrapping each route's
// handler with the middleware its declared Policy requires.
func (r *Registry) Mount(mux chi.Router, deps Deps) {
	for _, m := range r.Modules() {
		module := m
		mux.Route(module.Prefix, func(sub chi.Router) {
			for _, rt := range module.Routes {
				sub.Method(rt.Method, rt.Path, wrapPolicy(rt, deps))
			}
		})
	}
}

func wrapPolicy(rt Route, deps Deps) http.Handler {
	var h http.Handler = rt.Handler

	switch rt.Policy {
	case PolicyPublic:
		return h

	case PolicyOptionalAuth:
		h = authenticateOptional(deps.JWT, h)
		return deps.Tenancy.OptionalTenant(h)

	case PolicyRequireAuth:
		h = authenticateRequired(deps.JWT, h)
		return deps.Tenancy.RequireTenant(h)

	case PolicyRequirePlatformAdmin:
		h = requirePlatformAdmin(h)
		h = authenticateRequired(deps.JWT, h)
		return deps.Tenancy.RequireTenant(h)

	case PolicyRequireTenantAdmin:
		h = requireAnyRole(deps, []string{"tenant_admin"}, h)
		h = authenticateRequired(deps.JWT, h)
		return deps.Tenancy.RequireTenant(h)

	case PolicyRequirePermission:
		h = requirePermission(deps, rt.Permission, h)
		h = authenticateRequired(deps.JWT, h)
		return deps.Tenancy.RequireTenant(h)

	default:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, errors.ErrInternal("route has no mountable policy"))
		})
	}
}

func authenticateRequired(jwtManager *auth.JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := bearerClaims(jwtManager, r)
		if err != nil {
			response.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

func authenticateOptional(jwtManager *auth.JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := bearerClaims(jwtManager, r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

func bearerClaims(jwtManager *auth.JWTManager, r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if len(header) < 8 || header[:7] != "Bearer " {
		return nil, errors.ErrUnauthorized("missing bearer token")
	}
	return jwtManager.ValidateAccessToken(header[7:])
}

func requirePlatformAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsPlatformAdmin(r.Context()) {
			response.Error(w, errors.ErrForbidden("platform admin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAnyRole(deps Deps, roles []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.ErrUnauthorized("authentication required"))
			return
		}
		if claims.IsPlatformAdmin() {
			next.ServeHTTP(w, r)
			return
		}

		user, err := deps.Users.GetUserByID(r.Context(), claims.UserID)
		if err != nil || user == nil {
			response.Error(w, errors.ErrForbidden("user not found"))
			return
		}

		ok, err = deps.Authz.HasAnyRole(r.Context(), *user, claims.TenantID, roles)
		if err != nil {
			response.Error(w, err)
			return
		}
		if !ok {
			response.Error(w, errors.ErrForbidden("insufficient role"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requirePermission(deps Deps, permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.ErrUnauthorized("authentication required"))
			return
		}

		user, err := deps.Users.GetUserByID(r.Context(), claims.UserID)
		if err != nil || user == nil {
			response.Error(w, errors.ErrForbidden("user not found"))
			return
		}

		granted, err := deps.Authz.HasPermission(r.Context(), *user, claims.TenantID, permission)
		if err != nil {
			response.Error(w, err)
			return
		}
		if !granted {
			response.Error(w, errors.ErrForbidden("missing permission: "+permission))
			return
		}
		next.ServeHTTP(w, r)
	})
}
