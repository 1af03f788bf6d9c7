package tenancy

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/inspectra/platform-core/pkg/auth"
	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/response"
)

type contextKey string

const requestContextKey contextKey = "request_context"

// WithRequestContext returns a context carrying rc, retrievable via
// FromContext.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext extracts the RequestContext attached by the router's
// authentication middleware.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	return rc, ok
}

// MustFromContext extracts the RequestContext or panics. Route handlers run
// behind middleware that always attaches one; a missing RequestContext
// means a handler was wired to a route that skipped authentication, which
// is a startup wiring bug, not a runtime condition to recover from.
func MustFromContext(ctx context.Context) RequestContext {
	rc, ok := FromContext(ctx)
	if !ok {
		panic("tenancy: RequestContext missing from context")
	}
	return rc
}

// Resolver resolves a tenant by id or slug, used to validate that a tenant
// referenced by a header or JWT claim actually exists and is active.
type Resolver interface {
	ResolveByID(ctx context.Context, id string) (Tenant, error)
	ResolveBySlug(ctx context.Context, slug string) (Tenant, error)
}

// Tenant is the subset of tenant fields the middleware needs to validate
// resolution without importing the document/repository packages.
type Tenant struct {
	ID     string
	Slug   string
	Status string
}

// IsActive reports whether the tenant may be scoped into.
func (t Tenant) IsActive() bool {
	return t.Status == "active"
}

// Middleware builds request context from verified JWT claims and an
// optional explicit tenant selector, following the three-tier resolution
// order the teacher's tenant-resolution middleware implements: an
// X-Tenant-ID header, then an X-Tenant-Slug header, then the tenant bound
// into the token itself.
type Middleware struct {
	resolver Resolver
	log      *logger.Logger
}

// NewMiddleware constructs a Middleware backed by resolver.
func NewMiddleware(resolver Resolver, log *logger.Logger) *Middleware {
	return &Middleware{resolver: resolver, log: log}
}

// RequireTenant resolves and validates a tenant, returning 400 if no
// source names one, 404 if resolution fails, and 403 if the tenant is not
// active or the authenticated user has no access to it. It must run after
// an authentication middleware that has already attached pkg/auth.Claims.
func (m *Middleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, errors.ErrUnauthorized("authentication required"))
			return
		}

		tenant, err := m.resolveTenant(r, claims)
		if err != nil {
			response.Error(w, err)
			return
		}

		if tenant == nil {
			response.Error(w, errors.ErrBadRequest("no tenant specified"))
			return
		}

		if !tenant.IsActive() {
			response.Error(w, errors.ErrForbidden("tenant is not active"))
			return
		}

		tctx := tenantContextFor(claims, tenant.ID)
		rc := NewRequestContext(m.log, tctx, r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

// OptionalTenant attempts the same resolution as RequireTenant but
// proceeds without a resolved tenant (an empty TenantContext) rather than
// failing the request, for routes that behave differently for
// authenticated-but-tenantless callers (e.g. tenant discovery).
func (m *Middleware) OptionalTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			rc := NewRequestContext(m.log, TenantContext{}, r.Header.Get("X-Request-ID"))
			next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
			return
		}

		tenant, err := m.resolveTenant(r, claims)
		var tctx TenantContext
		if err == nil && tenant != nil && tenant.IsActive() {
			tctx = tenantContextFor(claims, tenant.ID)
		} else {
			tctx = tenantContextFor(claims, "")
		}

		rc := NewRequestContext(m.log, tctx, r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
	})
}

func (m *Middleware) resolveTenant(r *http.Request, claims *auth.Claims) (*Tenant, error) {
	ctx := r.Context()

	if id := r.Header.Get("X-Tenant-ID"); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			t, err := m.resolver.ResolveByID(ctx, id)
			if err != nil {
				return nil, err
			}
			return &t, nil
		}
	}

	if slug := r.Header.Get("X-Tenant-Slug"); slug != "" {
		t, err := m.resolver.ResolveBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	if claims.TenantID != "" {
		t, err := m.resolver.ResolveByID(ctx, claims.TenantID)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	return nil, nil
}

func tenantContextFor(claims *auth.Claims, tenantID string) TenantContext {
	if claims.IsPlatformAdmin() && tenantID == "" {
		return NewPlatformAdminContext(claims.UserID, claims.PlatformRole)
	}
	return NewTenantContext(tenantID, claims.UserID, claims.PlatformRole)
}
