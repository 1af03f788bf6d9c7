package identity

import "testing"

func TestTenant_IsActive(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{TenantStatusActive, true},
		{TenantStatusSuspended, false},
		{TenantStatusInactive, false},
		{"", false},
	}
	for _, c := range cases {
		got := Tenant{Status: c.status}.IsActive()
		if got != c.want {
			t.Errorf("Tenant{Status: %q}.IsActive() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestUser_IsPlatformAdmin(t *testing.T) {
	if !(User{PlatformRole: PlatformRoleAdmin}).IsPlatformAdmin() {
		t.Error("expected platform_admin role to report IsPlatformAdmin")
	}
	if (User{PlatformRole: PlatformRoleUser}).IsPlatformAdmin() {
		t.Error("expected ordinary user role to not report IsPlatformAdmin")
	}
	if (User{}).IsPlatformAdmin() {
		t.Error("expected zero-value user to not report IsPlatformAdmin")
	}
}
