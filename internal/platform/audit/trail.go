package audit

import (
	"context"
	"time"

	"github.com/inspectra/platform-core/pkg/logger"
)

// Trail is the append-only writer the repository kernel calls on every
// mutation.
type Trail interface {
	Append(ctx context.Context, event Event)
	Close(ctx context.Context) error
}

// BufferedTrailConfig configures BufferedTrail's batching behavior.
type BufferedTrailConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultBufferedTrailConfig mirrors the teacher's BufferedAuditLogger
// defaults.
func DefaultBufferedTrailConfig() BufferedTrailConfig {
	return BufferedTrailConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1000,
	}
}

// BufferedTrail batches events through a buffered channel, flushing on
// whichever comes first: BatchSize accumulated entries or FlushInterval
// elapsing, following the teacher's BufferedAuditLogger. Append never
// blocks the caller on a successful buffer send; if the buffer is full it
// falls back to a synchronous write so an audit event is never silently
// dropped.
type BufferedTrail struct {
	sink   Sink
	log    *logger.Logger
	cfg    BufferedTrailConfig
	buffer chan Event
	done   chan struct{}
	closed chan struct{}
}

// NewBufferedTrail starts the background flush loop and returns a ready
// BufferedTrail.
func NewBufferedTrail(sink Sink, log *logger.Logger, cfg BufferedTrailConfig) *BufferedTrail {
	t := &BufferedTrail{
		sink:   sink,
		log:    log,
		cfg:    cfg,
		buffer: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go t.run()
	return t
}

// Append enqueues event for the next batch flush.
func (t *BufferedTrail) Append(ctx context.Context, event Event) {
	select {
	case t.buffer <- event:
	default:
		// Buffer full: write synchronously rather than drop the event.
		if err := t.sink.WriteBatch(ctx, []Event{event}); err != nil {
			t.log.Error().Err(err).Str("resource_type", event.ResourceType).Msg("synchronous audit write failed")
		}
	}
}

// Close stops the flush loop and flushes any remaining buffered entries.
func (t *BufferedTrail) Close(ctx context.Context) error {
	close(t.done)
	<-t.closed
	return nil
}

func (t *BufferedTrail) run() {
	defer close(t.closed)

	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, t.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := t.sink.WriteBatch(context.Background(), batch); err != nil {
			t.log.Error().Err(err).Int("count", len(batch)).Msg("audit batch flush failed")
		}
		batch = make([]Event, 0, t.cfg.BatchSize)
	}

	for {
		select {
		case e := <-t.buffer:
			batch = append(batch, e)
			if len(batch) >= t.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-t.done:
			// Drain whatever is already queued, then flush the remainder.
			for {
				select {
				case e := <-t.buffer:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

var _ Trail = (*BufferedTrail)(nil)
