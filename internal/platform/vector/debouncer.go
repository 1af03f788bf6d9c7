package vector

import (
	"sync"
	"time"
)

// Debouncer coalesces multiple events for the same documentId within
// window into a single Job carrying only the latest state, per spec.md
// §4.5. It is a per-documentId timer map guarded by a mutex, following
// pkg/resilience's style of explicit mutexes over unbounded goroutine
// fan-out rather than one timer goroutine per event.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingJob
	emit    func(Job)
}

type pendingJob struct {
	job   Job
	timer *time.Timer
}

// NewDebouncer builds a Debouncer that calls emit once window has
// elapsed since the last event for a given documentId.
func NewDebouncer(window time.Duration, emit func(Job)) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: map[string]*pendingJob{},
		emit:    emit,
	}
}

// Push records event, resetting the debounce window for its
// DocumentID and replacing any previously pending job with the latest
// state — coalescing preserves the latest state only.
func (d *Debouncer) Push(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[job.DocumentID]; ok {
		existing.timer.Stop()
		existing.job = job
		existing.timer = time.AfterFunc(d.window, func() { d.fire(job.DocumentID) })
		return
	}

	entry := &pendingJob{job: job}
	entry.timer = time.AfterFunc(d.window, func() { d.fire(job.DocumentID) })
	d.pending[job.DocumentID] = entry
}

func (d *Debouncer) fire(documentID string) {
	d.mu.Lock()
	entry, ok := d.pending[documentID]
	if ok {
		delete(d.pending, documentID)
	}
	d.mu.Unlock()

	if ok {
		d.emit(entry.job)
	}
}

// PendingCount reports how many documentIds are currently debouncing, for
// the health endpoint's queue-depth-adjacent visibility.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
