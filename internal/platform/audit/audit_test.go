package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inspectra/platform-core/pkg/logger"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memorySink) WriteBatch(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestCompareChanges_DetectsAddedChangedRemovedFields(t *testing.T) {
	old := map[string]interface{}{"status": "open", "severity": "low"}
	new := map[string]interface{}{"status": "closed", "owner": "u1"}

	oldValues, newValues := CompareChanges(old, new)

	if oldValues["status"] != "open" {
		t.Errorf("expected old status to be reported, got %v", oldValues["status"])
	}
	if _, ok := oldValues["severity"]; !ok {
		t.Error("expected removed field severity to appear in oldValues")
	}
	if newValues["status"] != "closed" {
		t.Errorf("expected new status to be reported, got %v", newValues["status"])
	}
	if _, ok := newValues["owner"]; !ok {
		t.Error("expected added field owner to appear in newValues")
	}
}

func TestCompareChanges_UnchangedFieldsOmitted(t *testing.T) {
	old := map[string]interface{}{"status": "open"}
	new := map[string]interface{}{"status": "open"}

	oldValues, newValues := CompareChanges(old, new)
	if len(oldValues) != 0 || len(newValues) != 0 {
		t.Errorf("expected no diffs for identical maps, got old=%v new=%v", oldValues, newValues)
	}
}

func TestEventBuilder(t *testing.T) {
	event := NewEventBuilder("tenant-1", EventUpdate).
		WithActor("user-1").
		WithResource("inspection", "doc-1").
		WithBefore(map[string]interface{}{"status": "open"}).
		WithAfter(map[string]interface{}{"status": "closed"}).
		Build()

	if event.TenantID != "tenant-1" || event.EventType != EventUpdate {
		t.Fatalf("unexpected event envelope: %+v", event)
	}
	if event.ActorUserID != "user-1" || event.ResourceID != "doc-1" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
}

func TestBufferedTrail_FlushesOnBatchSize(t *testing.T) {
	sink := &memorySink{}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	trail := NewBufferedTrail(sink, log, BufferedTrailConfig{
		BatchSize:     3,
		FlushInterval: time.Hour,
		BufferSize:    10,
	})
	defer trail.Close(context.Background())

	for i := 0; i < 3; i++ {
		trail.Append(context.Background(), NewEventBuilder("t1", EventCreate).Build())
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if sink.count() != 3 {
		t.Fatalf("expected batch-size flush to write 3 events, got %d", sink.count())
	}
}

func TestBufferedTrail_CloseFlushesRemainder(t *testing.T) {
	sink := &memorySink{}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	trail := NewBufferedTrail(sink, log, BufferedTrailConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		BufferSize:    10,
	})

	trail.Append(context.Background(), NewEventBuilder("t1", EventCreate).Build())
	trail.Append(context.Background(), NewEventBuilder("t1", EventDelete).Build())

	if err := trail.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if sink.count() != 2 {
		t.Fatalf("expected close to flush remaining 2 events, got %d", sink.count())
	}
}
