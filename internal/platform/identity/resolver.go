package identity

import (
	"context"

	"github.com/inspectra/platform-core/internal/platform/tenancy"
	"github.com/inspectra/platform-core/pkg/errors"
)

// Resolver adapts Store to tenancy.Resolver, so the tenant-resolution
// middleware never needs to import the identity store's full surface.
type Resolver struct {
	store *Store
}

// NewResolver wraps store as a tenancy.Resolver.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) ResolveByID(ctx context.Context, id string) (tenancy.Tenant, error) {
	t, err := r.store.GetTenantByID(ctx, id)
	if err != nil {
		return tenancy.Tenant{}, errors.ErrDatabase(err, "resolveTenantByID")
	}
	if t == nil {
		return tenancy.Tenant{}, errors.ErrNotFound("tenant")
	}
	return tenancy.Tenant{ID: t.ID, Slug: t.Slug, Status: t.Status}, nil
}

func (r *Resolver) ResolveBySlug(ctx context.Context, slug string) (tenancy.Tenant, error) {
	t, err := r.store.GetTenantBySlug(ctx, slug)
	if err != nil {
		return tenancy.Tenant{}, errors.ErrDatabase(err, "resolveTenantBySlug")
	}
	if t == nil {
		return tenancy.Tenant{}, errors.ErrNotFound("tenant")
	}
	return tenancy.Tenant{ID: t.ID, Slug: t.Slug, Status: t.Status}, nil
}

var _ tenancy.Resolver = (*Resolver)(nil)
