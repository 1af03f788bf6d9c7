package cache

import "time"

// PermissionCache caches a user's effective permission set within one
// tenant, keyed by (userId, tenantId), per spec.md §4.6/§5.
type PermissionCache struct {
	cache *Cache[[]string]
}

// NewPermissionCache builds a PermissionCache with the given size and TTL.
func NewPermissionCache(maxEntries int64, ttl time.Duration) (*PermissionCache, error) {
	c, err := New[[]string](Config{MaxEntries: maxEntries, TTL: ttl})
	if err != nil {
		return nil, err
	}
	return &PermissionCache{cache: c}, nil
}

func permissionKey(userID, tenantID string) string {
	return userID + ":" + tenantID
}

// Get returns the cached permission strings for (userID, tenantID).
func (p *PermissionCache) Get(userID, tenantID string) ([]string, bool) {
	return p.cache.Get(permissionKey(userID, tenantID))
}

// Set stores the effective permission strings for (userID, tenantID).
func (p *PermissionCache) Set(userID, tenantID string, permissions []string) {
	p.cache.Set(permissionKey(userID, tenantID), permissions)
}

// Invalidate evicts (userID, tenantID). It is called through
// authz.Service.InvalidatePermissions by the membership create/delete
// routes (internal/routes/tenants) for this pair.
func (p *PermissionCache) Invalidate(userID, tenantID string) {
	p.cache.Del(permissionKey(userID, tenantID))
}

// Close releases the underlying cache.
func (p *PermissionCache) Close() {
	p.cache.Close()
}
