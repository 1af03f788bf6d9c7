// Package metrics registers the Prometheus gauges/counters/histograms
// scraped at /metrics, grounded on the example pack's tracing.Metrics
// (promauto-registered vectors, one struct field per series, a
// RecordX helper per concern) and scoped down to this system's four
// request-facing subsystems: HTTP, the repository kernel, the workflow
// engine, and the vector pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every series this system exposes.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	RepositoryOpDuration *prometheus.HistogramVec
	RepositoryOpsTotal   *prometheus.CounterVec
	RepositoryOpErrors   *prometheus.CounterVec

	WorkflowExecutionsTotal   *prometheus.CounterVec
	WorkflowExecutionDuration *prometheus.HistogramVec
	WorkflowExecutionsActive  prometheus.Gauge

	VectorJobsInFlight     prometheus.Gauge
	VectorQueueDepth       prometheus.Gauge
	VectorEmbeddingsTotal  *prometheus.CounterVec
	VectorEmbeddingErrors  *prometheus.CounterVec
	VectorEmbeddingLatency prometheus.Histogram

	AuditEventsTotal     *prometheus.CounterVec
	AuditFlushErrorTotal prometheus.Counter
}

// New registers every series under namespace (empty defaults to
// "platform_core") and returns the populated Metrics.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "platform_core"
	}

	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),

		RepositoryOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repository_operation_duration_seconds",
				Help:      "Duration of repository kernel operations",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation", "document_type"},
		),
		RepositoryOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_operations_total",
				Help:      "Total repository kernel operations",
			},
			[]string{"operation", "document_type", "status"},
		),
		RepositoryOpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_operation_errors_total",
				Help:      "Total repository kernel operation errors",
			},
			[]string{"operation", "document_type", "error_code"},
		),

		WorkflowExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_executions_total",
				Help:      "Total workflow executions by terminal status",
			},
			[]string{"workflow_id", "status"},
		),
		WorkflowExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_execution_duration_seconds",
				Help:      "Workflow execution wall-clock duration",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"workflow_id", "status"},
		),
		WorkflowExecutionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflow_executions_active",
				Help:      "Number of executions currently running or paused",
			},
		),

		VectorJobsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vector_jobs_in_flight",
				Help:      "Number of embedding jobs currently being processed",
			},
		),
		VectorQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vector_queue_depth",
				Help:      "Number of embedding jobs waiting in the worker pool queue",
			},
		),
		VectorEmbeddingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vector_embeddings_total",
				Help:      "Total documents embedded",
			},
			[]string{"document_type", "status"},
		),
		VectorEmbeddingErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vector_embedding_errors_total",
				Help:      "Total embedding failures by reason",
			},
			[]string{"document_type", "reason"},
		),
		VectorEmbeddingLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vector_embedding_latency_seconds",
				Help:      "Latency of a single embed+upsert cycle",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
			},
		),

		AuditEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_events_total",
				Help:      "Total audit events written",
			},
			[]string{"event_type"},
		),
		AuditFlushErrorTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_flush_errors_total",
				Help:      "Total audit batch flush failures",
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordRepositoryOp records one repository kernel operation outcome.
func (m *Metrics) RecordRepositoryOp(operation, docType, status string, duration time.Duration) {
	m.RepositoryOpDuration.WithLabelValues(operation, docType).Observe(duration.Seconds())
	m.RepositoryOpsTotal.WithLabelValues(operation, docType, status).Inc()
}

// RecordRepositoryError records a repository operation error by code.
func (m *Metrics) RecordRepositoryError(operation, docType, errorCode string) {
	m.RepositoryOpErrors.WithLabelValues(operation, docType, errorCode).Inc()
}

// RecordWorkflowExecution records a terminal execution outcome.
func (m *Metrics) RecordWorkflowExecution(workflowID, status string, duration time.Duration) {
	m.WorkflowExecutionDuration.WithLabelValues(workflowID, status).Observe(duration.Seconds())
	m.WorkflowExecutionsTotal.WithLabelValues(workflowID, status).Inc()
}

// RecordEmbedding records one embed+upsert attempt.
func (m *Metrics) RecordEmbedding(docType, status string, duration time.Duration) {
	m.VectorEmbeddingsTotal.WithLabelValues(docType, status).Inc()
	m.VectorEmbeddingLatency.Observe(duration.Seconds())
}

// RecordEmbeddingError records an embedding failure by reason.
func (m *Metrics) RecordEmbeddingError(docType, reason string) {
	m.VectorEmbeddingErrors.WithLabelValues(docType, reason).Inc()
}

// RecordAuditEvent records one audit event write.
func (m *Metrics) RecordAuditEvent(eventType string) {
	m.AuditEventsTotal.WithLabelValues(eventType).Inc()
}
