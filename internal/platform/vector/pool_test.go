package vector

import "testing"

func TestSemanticHash_StableForEquivalentAttributes(t *testing.T) {
	a := Job{Title: "Asset 1", Attributes: map[string]interface{}{"status": "active", "owner": "alice"}}
	b := Job{Title: "Asset 1", Attributes: map[string]interface{}{"owner": "alice", "status": "active"}}

	if semanticHash(a) != semanticHash(b) {
		t.Fatalf("expected hash to be independent of map iteration order")
	}
}

func TestSemanticHash_ChangesWithAttributeValue(t *testing.T) {
	a := Job{Title: "Asset 1", Attributes: map[string]interface{}{"status": "active"}}
	b := Job{Title: "Asset 1", Attributes: map[string]interface{}{"status": "retired"}}

	if semanticHash(a) == semanticHash(b) {
		t.Fatalf("expected hash to change when an attribute value changes")
	}
}

func TestSemanticHash_ChangesWithTitle(t *testing.T) {
	a := Job{Title: "Asset 1"}
	b := Job{Title: "Asset 2"}

	if semanticHash(a) == semanticHash(b) {
		t.Fatalf("expected hash to change when the title changes")
	}
}

func TestProjectText_IncludesTitleAndAttributesInStableOrder(t *testing.T) {
	job := Job{
		Title:      "Fire extinguisher inspection",
		Attributes: map[string]interface{}{"zone": "warehouse-b", "result": "pass"},
	}

	got := projectText(job)
	want := "Fire extinguisher inspection\nresult: pass\nzone: warehouse-b"
	if got != want {
		t.Fatalf("projectText() = %q, want %q", got, want)
	}
}
