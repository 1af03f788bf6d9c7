package vector

import "testing"

func TestWatcher_Monitors_WatchesEverythingWhenListEmpty(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{}}
	if !w.monitors("inspection") {
		t.Fatal("expected an empty monitored-types set to watch every type")
	}
}

func TestWatcher_Monitors_FiltersToConfiguredTypes(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{"inspection": {}}}
	if !w.monitors("inspection") {
		t.Error("expected inspection to be monitored")
	}
	if w.monitors("asset") {
		t.Error("expected asset to be filtered out")
	}
}

func TestWatcher_Normalize_FiltersUnmonitoredType(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{"inspection": {}}}

	ev := changeStreamEvent{OperationType: "insert"}
	ev.FullDocument.ID = "doc-1"
	ev.FullDocument.Type = "asset"

	_, ok := w.normalize(ev)
	if ok {
		t.Fatal("expected an unmonitored type to be filtered out")
	}
}

func TestWatcher_Normalize_MapsSoftDeleteToChangeDelete(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{}}

	ev := changeStreamEvent{OperationType: "update"}
	ev.FullDocument.ID = "doc-1"
	ev.FullDocument.Type = "inspection"
	ev.FullDocument.Deleted = true

	got, ok := w.normalize(ev)
	if !ok {
		t.Fatal("expected the event to pass filtering")
	}
	if got.Kind != ChangeDelete {
		t.Fatalf("expected a soft-deleted document to normalize to ChangeDelete, got %q", got.Kind)
	}
}

func TestWatcher_Normalize_PassesThroughInsert(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{}}

	ev := changeStreamEvent{OperationType: "insert"}
	ev.FullDocument.ID = "doc-1"
	ev.FullDocument.TenantID = "tenant-1"
	ev.FullDocument.Type = "inspection"
	ev.FullDocument.Title = "Monthly fire safety check"

	got, ok := w.normalize(ev)
	if !ok {
		t.Fatal("expected insert to pass filtering")
	}
	if got.Kind != ChangeInsert || got.DocumentID != "doc-1" || got.TenantID != "tenant-1" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
}

func TestWatcher_Normalize_PhysicalDeleteCarriesOnlyDocumentID(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{}}

	ev := changeStreamEvent{OperationType: "delete"}
	ev.DocumentKey.ID = "doc-1"

	got, ok := w.normalize(ev)
	if !ok {
		t.Fatal("expected delete to pass filtering")
	}
	if got.Kind != ChangeDelete || got.DocumentID != "doc-1" {
		t.Fatalf("unexpected normalized event: %+v", got)
	}
}

func TestWatcher_Normalize_IgnoresUnknownOperationType(t *testing.T) {
	w := &Watcher{monitoredTypes: map[string]struct{}{}}

	_, ok := w.normalize(changeStreamEvent{OperationType: "invalidate"})
	if ok {
		t.Fatal("expected an unrecognized operation type to be ignored")
	}
}
