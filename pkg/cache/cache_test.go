package cache

import (
	"testing"
	"time"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, err := New[string](Config{MaxEntries: 100, TTL: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	c.Set("k1", "v1")
	c.cache.Wait()

	got, ok := c.Get("k1")
	if !ok || got != "v1" {
		t.Fatalf("expected (v1, true), got (%q, %v)", got, ok)
	}
}

func TestCache_MissReturnsZeroValue(t *testing.T) {
	c, err := New[string](Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	got, ok := c.Get("missing")
	if ok || got != "" {
		t.Fatalf("expected (\"\", false) on miss, got (%q, %v)", got, ok)
	}
}

func TestCache_Del(t *testing.T) {
	c, err := New[string](Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	c.Set("k1", "v1")
	c.cache.Wait()
	c.Del("k1")
	c.cache.Wait()

	if _, ok := c.Get("k1"); ok {
		t.Error("expected key to be evicted after Del")
	}
}

func TestNilCache_IsSafeToUse(t *testing.T) {
	var c *Cache[string]

	c.Set("k1", "v1")
	if _, ok := c.Get("k1"); ok {
		t.Error("expected a nil cache to always report a miss")
	}
	c.Del("k1")
	c.Close()
}

func TestPermissionCache_SetGetInvalidate(t *testing.T) {
	pc, err := NewPermissionCache(100, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pc.Close()

	pc.Set("user-1", "tenant-1", []string{"documents:read"})
	pc.cache.cache.Wait()

	perms, ok := pc.Get("user-1", "tenant-1")
	if !ok || len(perms) != 1 || perms[0] != "documents:read" {
		t.Fatalf("expected cached permissions, got %v ok=%v", perms, ok)
	}

	pc.Invalidate("user-1", "tenant-1")
	pc.cache.cache.Wait()

	if _, ok := pc.Get("user-1", "tenant-1"); ok {
		t.Error("expected cache entry to be gone after invalidation")
	}
}

func TestPermissionCache_DifferentTenantsDoNotCollide(t *testing.T) {
	pc, err := NewPermissionCache(100, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pc.Close()

	pc.Set("user-1", "tenant-1", []string{"documents:read"})
	pc.Set("user-1", "tenant-2", []string{"documents:*"})
	pc.cache.cache.Wait()

	a, _ := pc.Get("user-1", "tenant-1")
	b, _ := pc.Get("user-1", "tenant-2")
	if a[0] == b[0] {
		t.Fatalf("expected distinct entries per tenant, got %v and %v", a, b)
	}
}
