package vector

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inspectra/platform-core/pkg/config"
	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/metrics"
)

// Pipeline wires the watcher, debouncer, and worker pool together into the
// embedding pipeline described end-to-end in spec.md §4.5. It is
// constructed once at startup and owns the pipeline's lifecycle.
type Pipeline struct {
	cfg       config.VectorConfig
	watcher   *Watcher
	debouncer *Debouncer
	pool      *Pool
	metrics   *metrics.Metrics
	log       *logger.Logger

	highWaterMark int
	lowWaterMark  int

	mu      sync.Mutex
	running bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPipeline builds a Pipeline from cfg. It does not start watching until
// Start is called.
func NewPipeline(db *mongo.Database, cfg config.VectorConfig, store Store, embedder Embedder, m *metrics.Metrics, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Global()
	}

	p := &Pipeline{
		cfg:           cfg,
		watcher:       NewWatcher(db, cfg.MonitoredTypes, log),
		pool:          NewPool(store, embedder, cfg.WorkerPoolSize, cfg.QueueSize, cfg.MaxRetryAttempts, m, log),
		metrics:       m,
		log:           log,
		highWaterMark: cfg.HighWaterMark,
		lowWaterMark:  cfg.LowWaterMark,
	}
	p.debouncer = NewDebouncer(cfg.DebounceWindow, p.onDebounced)
	return p
}

func (p *Pipeline) onDebounced(job Job) {
	p.pool.Submit(job)
}

// Start launches the watcher in a background goroutine. It logs a status
// line regardless of whether the pipeline is enabled, per spec.md §4.5's
// "logs a status line at startup in every path" lifecycle requirement.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.cfg.Enabled {
		p.log.Info().Msg("vector pipeline: disabled, not starting")
		return
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	p.log.Info().Msg("vector pipeline: starting")

	go p.run(runCtx)
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := p.watcher.Run(ctx, p.handleEvent)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.Error().Err(err).Msg("vector pipeline: watcher stopped, retrying")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (p *Pipeline) handleEvent(ev ChangeEvent) {
	p.maybePause()
	p.debouncer.Push(Job{
		Kind:       ev.Kind,
		DocumentID: ev.DocumentID,
		TenantID:   ev.TenantID,
		Type:       ev.Type,
		Title:      ev.Title,
		Attributes: ev.Attributes,
	})
}

// maybePause blocks the caller (the watcher's decode loop) while the job
// queue is at or above HighWaterMark, resuming once it falls back below
// LowWaterMark, per spec.md §4.5's backpressure guarantee. Blocking here
// — rather than dropping events — keeps the resume token from advancing
// past work the pool hasn't drained yet.
func (p *Pipeline) maybePause() {
	if p.highWaterMark <= 0 {
		return
	}
	if p.pool.QueueDepth() < p.highWaterMark {
		return
	}

	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.log.Warn().Msg("vector pipeline: queue at high water mark, pausing consumption")

	for p.pool.QueueDepth() > p.lowWaterMark {
		time.Sleep(50 * time.Millisecond)
	}

	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.log.Info().Msg("vector pipeline: queue below low water mark, resuming consumption")
}

// Stop signals the watcher to shut down and waits for the pool to drain
// in-flight jobs.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.running = false
	p.mu.Unlock()

	cancel()
	<-done
	p.pool.Close()
	p.log.Info().Msg("vector pipeline: stopped")
}

// Stats snapshots the pipeline's current state for the health endpoint.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	running := p.running
	paused := p.paused
	p.mu.Unlock()

	embeddings, errs, lastActivity := p.pool.Stats()

	if p.metrics != nil {
		p.metrics.VectorJobsInFlight.Set(float64(p.pool.InFlight()))
		p.metrics.VectorQueueDepth.Set(float64(p.pool.QueueDepth()))
	}

	return Stats{
		Enabled:         p.cfg.Enabled,
		Running:         running,
		InFlightJobs:    p.pool.InFlight(),
		QueueDepth:      p.pool.QueueDepth(),
		EmbeddingsTotal: embeddings,
		ErrorsTotal:     errs,
		LastActivity:    lastActivity,
		Paused:          paused,
	}
}
