package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inspectra/platform-core/pkg/logger"
	"github.com/inspectra/platform-core/pkg/metrics"
	"github.com/inspectra/platform-core/pkg/resilience"
)

// Pool is a bounded set of worker goroutines draining jobs off a buffered
// channel, per spec.md §4.5's "worker pool pulls jobs, computes the
// semantic projection... and stores the resulting vector". Concurrency is
// capped at WorkerPoolSize workers, backed by a QueueSize-deep channel, so
// a burst of change events cannot spawn unbounded goroutines.
type Pool struct {
	store    Store
	embedder Embedder
	retryer  *resilience.Retryer
	metrics  *metrics.Metrics
	log      *logger.Logger

	jobs     chan Job
	wg       sync.WaitGroup
	inFlight int32

	embeddingsTotal int64
	errorsTotal     int64
	lastActivity    atomic.Value // time.Time

	knownHashes sync.Map // documentId -> semanticHash, to skip unchanged documents
}

// NewPool builds a Pool. maxRetryAttempts configures the embed retry
// budget per spec.md §4.5's "exponential backoff, max 3 attempts".
func NewPool(store Store, embedder Embedder, workerCount, queueSize, maxRetryAttempts int, m *metrics.Metrics, log *logger.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxRetryAttempts <= 0 {
		maxRetryAttempts = 3
	}
	if log == nil {
		log = logger.Global()
	}

	p := &Pool{
		store:    store,
		embedder: embedder,
		retryer:  resilience.NewRetryer(resilience.WithRetryMaxAttempts(maxRetryAttempts)),
		metrics:  m,
		log:      log,
		jobs:     make(chan Job, queueSize),
	}
	p.lastActivity.Store(time.Time{})

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues job, blocking if the queue is full. The pipeline applies
// backpressure upstream by pausing the watcher before the queue fills, so
// this should rarely block in steady state.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// QueueDepth reports how many jobs are buffered and not yet picked up by a
// worker.
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// InFlight reports how many jobs are currently being processed by a
// worker.
func (p *Pool) InFlight() int {
	return int(atomic.LoadInt32(&p.inFlight))
}

// Stats snapshots the pool's counters for the health endpoint.
func (p *Pool) Stats() (embeddingsTotal, errorsTotal int64, lastActivity time.Time) {
	return atomic.LoadInt64(&p.embeddingsTotal), atomic.LoadInt64(&p.errorsTotal), p.lastActivity.Load().(time.Time)
}

// Close stops accepting new jobs and waits for in-flight work to drain.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.process(job)
	}
}

func (p *Pool) process(job Job) {
	atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	defer p.lastActivity.Store(time.Now().UTC())

	ctx := context.Background()
	start := time.Now()

	if job.Kind == ChangeDelete {
		p.processDelete(ctx, job)
		return
	}

	hash := semanticHash(job)
	if prev, ok := p.knownHashes.Load(job.DocumentID); ok && prev.(string) == hash {
		return
	}

	projection := projectText(job)

	var embedding []float32
	err := p.retryer.Do(ctx, func(ctx context.Context) error {
		vec, embedErr := p.embedder.Embed(ctx, projection)
		if embedErr != nil {
			return embedErr
		}
		embedding = vec
		return nil
	})
	if err != nil {
		p.recordError(job, "embed_failed")
		p.log.Error().Err(err).Str("documentId", job.DocumentID).Msg("vector pool: embed failed after retries")
		return
	}

	if err := p.store.EnsureCollection(ctx, job.TenantID, p.embedder.Dimension()); err != nil {
		p.recordError(job, "ensure_collection_failed")
		p.log.Error().Err(err).Str("documentId", job.DocumentID).Msg("vector pool: ensure collection failed")
		return
	}

	record := Record{
		DocumentID:   job.DocumentID,
		TenantID:     job.TenantID,
		Type:         job.Type,
		Embedding:    embedding,
		SemanticHash: hash,
		UpdatedAt:    time.Now().UTC(),
	}

	if err := p.store.Upsert(ctx, record); err != nil {
		p.recordError(job, "upsert_failed")
		p.log.Error().Err(err).Str("documentId", job.DocumentID).Msg("vector pool: upsert failed")
		return
	}

	p.knownHashes.Store(job.DocumentID, hash)
	atomic.AddInt64(&p.embeddingsTotal, 1)
	if p.metrics != nil {
		p.metrics.RecordEmbedding(job.Type, "success", time.Since(start))
	}
}

func (p *Pool) processDelete(ctx context.Context, job Job) {
	if job.TenantID == "" {
		// A physical delete event carries no tenantId; without it we
		// cannot address the tenant's collection. The document kernel
		// soft-deletes (never physically removes) so this path is not
		// expected to be exercised in practice.
		p.log.Warn().Str("documentId", job.DocumentID).Msg("vector pool: delete event missing tenantId, skipping")
		return
	}

	if err := p.store.Delete(ctx, job.TenantID, job.DocumentID); err != nil {
		p.recordError(job, "delete_failed")
		p.log.Error().Err(err).Str("documentId", job.DocumentID).Msg("vector pool: delete failed")
		return
	}
	p.knownHashes.Delete(job.DocumentID)
}

func (p *Pool) recordError(job Job, reason string) {
	atomic.AddInt64(&p.errorsTotal, 1)
	if p.metrics != nil {
		p.metrics.RecordEmbeddingError(job.Type, reason)
	}
}

// semanticHash fingerprints the fields that feed the embedding, so an
// unrelated attribute change doesn't trigger a redundant re-embed.
func semanticHash(job Job) string {
	h := sha256.New()
	h.Write([]byte(job.Title))
	h.Write([]byte{0})

	keys := make([]string, 0, len(job.Attributes))
	for k := range job.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%v", job.Attributes[k])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// projectText builds the semantic projection handed to the embedder:
// title followed by every string-valued (or string-convertible) attribute,
// in a stable key order.
func projectText(job Job) string {
	var b strings.Builder
	b.WriteString(job.Title)

	keys := make([]string, 0, len(job.Attributes))
	for k := range job.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(": ")
		fmt.Fprintf(&b, "%v", job.Attributes[k])
	}
	return b.String()
}
