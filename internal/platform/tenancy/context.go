// Package tenancy builds the per-request identity and scoping values that
// flow through every handler, repository, and audit call: TenantContext and
// RequestContext. Neither type is ever stored in a package-level variable;
// both are constructed once per request by the router middleware and passed
// explicitly from there on.
package tenancy

import (
	"time"

	"github.com/google/uuid"

	"github.com/inspectra/platform-core/pkg/logger"
)

// AllTenants is the sentinel tenant identifier carried by a platform
// admin's TenantContext. It is deliberately not the empty string: an unset
// TenantID and "every tenant" must never compare equal.
const AllTenants = "__all_tenants__"

// TenantContext is the immutable per-request identity and scope. It is
// constructed once, by the router's authentication middleware, from
// verified JWT claims and never mutated afterward.
type TenantContext struct {
	TenantID        string
	UserID          string
	PlatformRole    string
	IsPlatformAdmin bool
}

// NewTenantContext builds a TenantContext for an ordinary tenant member.
func NewTenantContext(tenantID, userID, platformRole string) TenantContext {
	return TenantContext{
		TenantID:        tenantID,
		UserID:          userID,
		PlatformRole:    platformRole,
		IsPlatformAdmin: platformRole == "platform_admin",
	}
}

// NewPlatformAdminContext builds a TenantContext scoped to every tenant, for
// a platform administrator who has not narrowed to a single tenant.
func NewPlatformAdminContext(userID, platformRole string) TenantContext {
	return TenantContext{
		TenantID:        AllTenants,
		UserID:          userID,
		PlatformRole:    platformRole,
		IsPlatformAdmin: true,
	}
}

// ScopedToAllTenants reports whether the repository kernel must omit its
// automatic tenant filter for this context.
func (t TenantContext) ScopedToAllTenants() bool {
	return t.IsPlatformAdmin && t.TenantID == AllTenants
}

// RequestContext carries TenantContext plus request-scoped observability
// state: a correlation id threaded through logs, traces, and error
// envelopes, the request start time, and a logger already bound with
// tenant/user/request fields.
type RequestContext struct {
	CorrelationID string
	StartedAt     time.Time
	Logger        *logger.Logger
	Tenant        TenantContext
}

// NewRequestContext builds a RequestContext, deriving a child logger bound
// with the tenant, user, and correlation fields following the teacher's
// LoggerContext builder pattern.
func NewRequestContext(base *logger.Logger, tenant TenantContext, correlationID string) RequestContext {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	child := base.With().
		RequestID(correlationID).
		UserID(tenant.UserID).
		Logger()

	if !tenant.ScopedToAllTenants() {
		child = child.With().TenantID(tenant.TenantID).Logger()
	}

	return RequestContext{
		CorrelationID: correlationID,
		StartedAt:     time.Now(),
		Logger:        child,
		Tenant:        tenant,
	}
}

// Elapsed returns the time since the request began.
func (r RequestContext) Elapsed() time.Duration {
	return time.Since(r.StartedAt)
}
