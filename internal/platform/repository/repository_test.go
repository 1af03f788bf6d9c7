package repository

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/inspectra/platform-core/internal/platform/document"
	"github.com/inspectra/platform-core/internal/platform/tenancy"
)

func newTestRepo(tctx tenancy.TenantContext, docType string) *Repository {
	return &Repository{docType: docType, rc: tenancy.RequestContext{Tenant: tctx}}
}

func TestBuildFilter_ScopesToTenantTypeAndExcludesDeleted(t *testing.T) {
	r := newTestRepo(tenancy.NewTenantContext("tenant-1", "user-1", ""), "inspection")

	f := r.buildFilter(bson.M{"status": "open"}, false)

	if f["tenant_id"] != "tenant-1" {
		t.Errorf("expected tenant_id clause, got %v", f["tenant_id"])
	}
	if f["type"] != "inspection" {
		t.Errorf("expected type clause, got %v", f["type"])
	}
	if _, ok := f["deleted"]; !ok {
		t.Error("expected a deleted exclusion clause by default")
	}
	if f["status"] != "open" {
		t.Errorf("expected caller filter to survive, got %v", f["status"])
	}
}

func TestBuildFilter_IncludeDeletedOmitsClause(t *testing.T) {
	r := newTestRepo(tenancy.NewTenantContext("tenant-1", "user-1", ""), "inspection")

	f := r.buildFilter(nil, true)

	if _, ok := f["deleted"]; ok {
		t.Error("expected no deleted clause when includeDeleted is true")
	}
}

func TestBuildFilter_PlatformAdminScopedToAllTenantsOmitsTenantClause(t *testing.T) {
	r := newTestRepo(tenancy.NewPlatformAdminContext("admin-1", "platform_admin"), "inspection")

	f := r.buildFilter(nil, false)

	if _, ok := f["tenant_id"]; ok {
		t.Error("expected no tenant_id clause for a platform admin scoped to all tenants")
	}
}

func TestBuildFilter_NarrowedPlatformAdminStillScoped(t *testing.T) {
	r := newTestRepo(tenancy.NewTenantContext("tenant-9", "admin-1", "platform_admin"), "inspection")

	f := r.buildFilter(nil, false)

	if f["tenant_id"] != "tenant-9" {
		t.Errorf("expected a platform admin narrowed to one tenant to be scoped, got %v", f["tenant_id"])
	}
}

func TestBuildFilter_DoesNotMutateCallerMap(t *testing.T) {
	r := newTestRepo(tenancy.NewTenantContext("tenant-1", "user-1", ""), "inspection")
	caller := map[string]interface{}{"status": "open"}

	r.buildFilter(caller, false)

	if _, ok := caller["tenant_id"]; ok {
		t.Error("buildFilter must not mutate the caller's filter map")
	}
}

func TestApplyMutableFields_KnownEnvelopeFieldsRouteOffAttributes(t *testing.T) {
	doc := &document.Document{}
	applyMutableFields(doc, map[string]interface{}{
		"title":   "Boiler inspection",
		"status":  "in_progress",
		"ownerId": "user-2",
		"tags":    []string{"urgent"},
		"code":    "INS-1",
	})

	if doc.Title != "Boiler inspection" || doc.Status != "in_progress" || doc.OwnerID != "user-2" {
		t.Fatalf("expected envelope fields set, got %+v", doc)
	}
	if len(doc.Tags) != 1 || doc.Tags[0] != "urgent" {
		t.Fatalf("expected tags set, got %v", doc.Tags)
	}
	if doc.Attributes["code"] != "INS-1" {
		t.Fatalf("expected unknown field to land in attributes, got %v", doc.Attributes)
	}
	if _, ok := doc.Attributes["title"]; ok {
		t.Error("known envelope field must not also be copied into attributes")
	}
}

func TestToAuditMap_CarriesMutableFieldsOnly(t *testing.T) {
	doc := document.Document{
		ID:        "doc-1",
		TenantID:  "tenant-1",
		Title:     "t",
		Status:    "open",
		Version:   3,
		CreatedAt: time.Now(),
	}

	m := toAuditMap(doc)

	if m["title"] != "t" || m["status"] != "open" || m["version"] != 3 {
		t.Fatalf("unexpected audit map: %v", m)
	}
	if _, ok := m["tenantId"]; ok {
		t.Error("immutable envelope fields should not appear in the audit diff map")
	}
}

func TestDateCoercionFields_FindsISODateComparisonOperators(t *testing.T) {
	fields := dateCoercionFields(map[string]interface{}{
		"createdAt": map[string]interface{}{"$gte": "2026-01-01T00:00:00Z"},
		"status":    "open",
	})

	if len(fields) != 1 || fields[0] != "createdAt" {
		t.Fatalf("expected [createdAt], got %v", fields)
	}
}

func TestDateCoercionFields_LeavesNonISOStringsAlone(t *testing.T) {
	fields := dateCoercionFields(map[string]interface{}{
		"code": map[string]interface{}{"$gte": "ABC-100"},
	})

	if len(fields) != 0 {
		t.Errorf("a non-ISO-date string must not be flagged for coercion, got %v", fields)
	}
}

func TestCaseInsensitiveRegex_EscapesMetacharactersAndIgnoresCase(t *testing.T) {
	got := caseInsensitiveRegex("a.b*c?")
	if got["$options"] != "i" {
		t.Errorf("expected case-insensitive option, got %v", got["$options"])
	}
	want := `a\.b\*c\?`
	if got["$regex"] != want {
		t.Errorf("caseInsensitiveRegex(%q)[\"$regex\"] = %v, want %q", "a.b*c?", got["$regex"], want)
	}
}

func TestSortByMatchCount_OrdersByFieldMatchCount(t *testing.T) {
	docs := []document.Document{
		{ID: "a", Title: "boiler"},
		{ID: "b", Title: "boiler", Attributes: map[string]interface{}{"description": "boiler room inspection"}},
		{ID: "c", Title: "valve"},
	}

	sortByMatchCount(docs, "boiler")

	if docs[0].ID != "b" {
		t.Fatalf("expected doc b (2 field matches) ranked first, got order %v", []string{docs[0].ID, docs[1].ID, docs[2].ID})
	}
}

func TestFieldValue_ResolvesEnvelopeAndAttributeFields(t *testing.T) {
	d := document.Document{ID: "doc-1", Title: "t", Status: "open", OwnerID: "user-1",
		Attributes: map[string]interface{}{"code": "INS-1"}}

	if fieldValue(d, "id") != "doc-1" {
		t.Error("expected id to resolve from envelope")
	}
	if fieldValue(d, "code") != "INS-1" {
		t.Error("expected unknown field to resolve from attributes")
	}
	if fieldValue(d, "missing") != nil {
		t.Error("expected missing attribute field to resolve to nil")
	}
}
