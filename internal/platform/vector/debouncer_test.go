package vector

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBurstsIntoLatestState(t *testing.T) {
	var mu sync.Mutex
	var emitted []Job

	d := NewDebouncer(20*time.Millisecond, func(j Job) {
		mu.Lock()
		emitted = append(emitted, j)
		mu.Unlock()
	})

	d.Push(Job{DocumentID: "doc-1", Title: "first"})
	d.Push(Job{DocumentID: "doc-1", Title: "second"})
	d.Push(Job{DocumentID: "doc-1", Title: "third"})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(emitted)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(emitted) != 1 {
		t.Fatalf("expected exactly one coalesced emission, got %d", len(emitted))
	}
	if emitted[0].Title != "third" {
		t.Fatalf("expected coalesced job to carry the latest state, got title %q", emitted[0].Title)
	}
}

func TestDebouncer_DistinctDocumentsEmitIndependently(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	d := NewDebouncer(10*time.Millisecond, func(j Job) {
		mu.Lock()
		seen[j.DocumentID] = true
		mu.Unlock()
	})

	d.Push(Job{DocumentID: "doc-1"})
	d.Push(Job{DocumentID: "doc-2"})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if !seen["doc-1"] || !seen["doc-2"] {
		t.Fatalf("expected both documents to emit independently, got %v", seen)
	}
}

func TestDebouncer_PendingCountReflectsUnfiredJobs(t *testing.T) {
	d := NewDebouncer(time.Hour, func(Job) {})

	d.Push(Job{DocumentID: "doc-1"})
	d.Push(Job{DocumentID: "doc-2"})
	d.Push(Job{DocumentID: "doc-1"})

	if got := d.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending documentIds, got %d", got)
	}
}
