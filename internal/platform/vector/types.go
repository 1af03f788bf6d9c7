// Package vector implements the change-stream-driven semantic embedding
// pipeline from spec.md §4.5: a watcher, a per-document debouncer, a
// bounded worker pool, and a tenant-isolated vector store. Grounded on
// the example pack's knoguchi-rag RAG server: server/internal/embedder
// for the embedder interface/Ollama client, server/internal/vectorstore
// for the per-tenant Qdrant store.
package vector

import "time"

// Record is the persisted semantic index entry for one document, per
// spec.md §3.4. Uniqueness is by DocumentID; it is regenerated whenever
// the source document's semantic projection changes.
type Record struct {
	DocumentID   string    `json:"documentId"`
	TenantID     string    `json:"tenantId"`
	Type         string    `json:"type"`
	Embedding    []float32 `json:"embedding"`
	SemanticHash string    `json:"semanticHash"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastError    string    `json:"lastError,omitempty"`
}

// ChangeKind mirrors the MongoDB change-stream operation types the
// watcher cares about.
type ChangeKind string

const (
	ChangeInsert  ChangeKind = "insert"
	ChangeUpdate  ChangeKind = "update"
	ChangeReplace ChangeKind = "replace"
	ChangeDelete  ChangeKind = "delete"
)

// ChangeEvent is the watcher's normalized view of one change-stream
// event, after filtering to monitored types.
type ChangeEvent struct {
	Kind       ChangeKind
	DocumentID string
	TenantID   string
	Type       string
	Title      string
	Attributes map[string]interface{}
}

// Job is one unit of work the worker pool processes: embed (or delete)
// the vector record for DocumentID. Debouncing collapses multiple
// ChangeEvents for the same DocumentID into the latest Job.
type Job struct {
	Kind       ChangeKind
	DocumentID string
	TenantID   string
	Type       string
	Title      string
	Attributes map[string]interface{}
}

// Stats is the snapshot served by the health endpoint (spec.md §4.5
// "lifecycle") and mirrored onto pkg/metrics gauges/counters.
type Stats struct {
	Enabled         bool      `json:"enabled"`
	Running         bool      `json:"running"`
	InFlightJobs    int       `json:"inFlightJobs"`
	QueueDepth      int       `json:"queueDepth"`
	EmbeddingsTotal int64     `json:"embeddingsGenerated"`
	ErrorsTotal     int64     `json:"errors"`
	LastActivity    time.Time `json:"lastActivity"`
	Paused          bool      `json:"paused"`
}
