package tenancy

import (
	"testing"

	"github.com/inspectra/platform-core/pkg/logger"
)

func TestNewTenantContext(t *testing.T) {
	tctx := NewTenantContext("tenant-1", "user-1", "")

	if tctx.TenantID != "tenant-1" {
		t.Errorf("expected tenant id tenant-1, got %q", tctx.TenantID)
	}
	if tctx.IsPlatformAdmin {
		t.Error("expected ordinary member to not be platform admin")
	}
	if tctx.ScopedToAllTenants() {
		t.Error("ordinary member must never be scoped to all tenants")
	}
}

func TestNewPlatformAdminContext(t *testing.T) {
	tctx := NewPlatformAdminContext("user-1", "platform_admin")

	if !tctx.IsPlatformAdmin {
		t.Error("expected platform admin context")
	}
	if !tctx.ScopedToAllTenants() {
		t.Error("expected platform admin with no tenant narrowed to be scoped to all tenants")
	}
	if tctx.TenantID != AllTenants {
		t.Errorf("expected sentinel tenant id, got %q", tctx.TenantID)
	}
}

func TestTenantContext_PlatformAdminNarrowedToTenant(t *testing.T) {
	tctx := NewTenantContext("tenant-1", "user-1", "platform_admin")

	if !tctx.IsPlatformAdmin {
		t.Error("expected platform admin flag from role")
	}
	if tctx.ScopedToAllTenants() {
		t.Error("a platform admin narrowed to a specific tenant id must not be all-tenants scoped")
	}
}

func TestAllTenantsSentinelNeverAliasesEmptyString(t *testing.T) {
	if AllTenants == "" {
		t.Fatal("AllTenants sentinel must not be the empty string")
	}

	unset := TenantContext{}
	if unset.ScopedToAllTenants() {
		t.Error("a zero-value TenantContext must not be treated as all-tenants scoped")
	}
}

func TestNewRequestContext_GeneratesCorrelationID(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	tctx := NewTenantContext("tenant-1", "user-1", "")

	rc := NewRequestContext(log, tctx, "")
	if rc.CorrelationID == "" {
		t.Error("expected a generated correlation id when none is supplied")
	}

	rc2 := NewRequestContext(log, tctx, "explicit-id")
	if rc2.CorrelationID != "explicit-id" {
		t.Errorf("expected supplied correlation id to be preserved, got %q", rc2.CorrelationID)
	}
}

func TestNewRequestContext_PlatformAdminLoggerOmitsTenantField(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	tctx := NewPlatformAdminContext("user-1", "platform_admin")

	rc := NewRequestContext(log, tctx, "corr-1")
	if rc.Logger == nil {
		t.Fatal("expected a non-nil child logger")
	}
	if rc.Tenant.TenantID != AllTenants {
		t.Errorf("expected request context to retain the all-tenants sentinel, got %q", rc.Tenant.TenantID)
	}
}
