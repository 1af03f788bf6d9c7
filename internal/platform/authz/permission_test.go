package authz

import "testing"

func TestParsePermission_BareWildcard(t *testing.T) {
	p, err := ParsePermission("*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.String() != "*" {
		t.Errorf("expected %q, got %q", "*", p.String())
	}
}

func TestParsePermission_RejectsMalformed(t *testing.T) {
	for _, s := range []string{"documents", "documents:read:extra", "", ":read"} {
		if _, err := ParsePermission(s); err == nil {
			t.Errorf("expected ParsePermission(%q) to fail", s)
		}
	}
}

func TestPermission_Implies(t *testing.T) {
	full := MustParsePermission("*")
	wildcardAction := MustParsePermission("documents:*")
	exact := MustParsePermission("documents:read")
	other := MustParsePermission("workflows:read")

	if !full.Implies(exact) {
		t.Error("expected full wildcard to imply any permission")
	}
	if !wildcardAction.Implies(exact) {
		t.Error("expected documents:* to imply documents:read")
	}
	if wildcardAction.Implies(other) {
		t.Error("expected documents:* to not imply workflows:read")
	}
	if !exact.Implies(exact) {
		t.Error("expected a permission to imply itself")
	}
}

func TestSet_HasHonorsWildcards(t *testing.T) {
	s := NewSet("documents:*")
	if !s.Has(MustParsePermission("documents:delete")) {
		t.Error("expected documents:* to grant documents:delete")
	}
	if s.Has(MustParsePermission("workflows:read")) {
		t.Error("expected documents:* to not grant workflows:read")
	}
}

func TestSet_NewSetSkipsMalformedEntries(t *testing.T) {
	s := NewSet("documents:read", "not-a-permission")
	if !s.Has(MustParsePermission("documents:read")) {
		t.Error("expected the valid entry to still be present")
	}
}

func TestSet_Merge(t *testing.T) {
	a := NewSet("documents:read")
	b := NewSet("workflows:read")
	a.Merge(b)

	if !a.Has(MustParsePermission("documents:read")) || !a.Has(MustParsePermission("workflows:read")) {
		t.Error("expected merge to union both sets' permissions")
	}
}

func TestRolePermissions_TenantAdminGrantsMembershipManagement(t *testing.T) {
	admin, ok := RolePermissions["tenant_admin"]
	if !ok {
		t.Fatal("expected a tenant_admin role mapping")
	}
	if !admin.Has(MustParsePermission("memberships:delete")) {
		t.Error("expected tenant_admin to manage memberships")
	}
}

func TestRolePermissions_ViewerCannotCreateDocuments(t *testing.T) {
	viewer, ok := RolePermissions["viewer"]
	if !ok {
		t.Fatal("expected a viewer role mapping")
	}
	if viewer.Has(MustParsePermission("documents:create")) {
		t.Error("expected viewer to not be granted documents:create")
	}
	if !viewer.Has(MustParsePermission("documents:read")) {
		t.Error("expected viewer to be granted documents:read")
	}
}
