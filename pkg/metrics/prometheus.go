// Package metrics provides Prometheus metrics for the nestmatch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace       string
	subsystem       string
	durationBuckets []float64
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Batch metrics
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	pairsScored   prometheus.Counter
	seekers       prometheus.Gauge
	items         prometheus.Gauge
	resultRows    prometheus.Gauge

	// Input quality
	recordsRejected      *prometheus.CounterVec
	degenerateEmbeddings *prometheus.CounterVec

	// Worker pool
	workerCapacity prometheus.Gauge
	workerRunning  prometheus.Gauge

	// Embedding collaborator
	embeddingRequests *prometheus.CounterVec
	embeddingCache    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "nestmatch",
		subsystem:       "engine",
		durationBuckets: prometheus.DefBuckets,
		constLabels:     map[string]string{},
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.durationBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.batches = auto.NewCounterVec(m.counterOpts("batches_total",
		"Total number of match batches by final status"), []string{"status"})
	m.batchDuration = auto.NewHistogram(m.histogramOpts("batch_duration_seconds",
		"Wall time of a full match batch"))
	m.pairsScored = auto.NewCounter(m.counterOpts("pairs_scored_total",
		"Total number of seeker x item pairs scored"))
	m.seekers = auto.NewGauge(m.gaugeOpts("seekers",
		"Seekers accepted into the last batch"))
	m.items = auto.NewGauge(m.gaugeOpts("items",
		"Items accepted into the last batch"))
	m.resultRows = auto.NewGauge(m.gaugeOpts("result_rows",
		"Rows in the last Top-K result table"))

	m.recordsRejected = auto.NewCounterVec(m.counterOpts("records_rejected_total",
		"Input records rejected by validation"), []string{"kind", "field"})
	m.degenerateEmbeddings = auto.NewCounterVec(m.counterOpts("degenerate_embeddings_total",
		"Zero-norm embeddings seen (usually an upstream embedding failure)"), []string{"kind"})

	m.workerCapacity = auto.NewGauge(m.gaugeOpts("worker_capacity",
		"Configured size of the scoring worker pool"))
	m.workerRunning = auto.NewGauge(m.gaugeOpts("worker_running",
		"Scoring workers currently busy"))

	m.embeddingRequests = auto.NewCounterVec(m.counterOpts("embedding_requests_total",
		"Requests sent to the embedding provider"), []string{"provider", "result"})
	m.embeddingCache = auto.NewCounterVec(m.counterOpts("embedding_cache_total",
		"Embedding memo lookups"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_seconds",
		"HTTP request duration"), []string{"endpoint", "method", "status_code"})
}

// RecordBatch records a finished batch.
func (m *Manager) RecordBatch(status string, seconds float64) {
	m.batches.WithLabelValues(status).Inc()
	m.batchDuration.Observe(seconds)
}

// Batch helpers on the global manager.

// RecordBatch records a finished batch with its status ("ok", "failed", "canceled").
func RecordBatch(status string, seconds float64) {
	globalManager.RecordBatch(status, seconds)
}

// AddPairsScored increments the scored pair counter.
func AddPairsScored(n int64) {
	globalManager.pairsScored.Add(float64(n))
}

// UpdateBatchSize sets the accepted seeker and item gauges.
func UpdateBatchSize(seekers, items int) {
	globalManager.seekers.Set(float64(seekers))
	globalManager.items.Set(float64(items))
}

// UpdateResultRows sets the size of the latest result table.
func UpdateResultRows(rows int) {
	globalManager.resultRows.Set(float64(rows))
}

// RecordRejectedRecord counts a record dropped or failed by validation.
func RecordRejectedRecord(kind, field string) {
	globalManager.recordsRejected.WithLabelValues(kind, field).Inc()
}

// RecordDegenerateEmbedding counts a zero-norm embedding.
func RecordDegenerateEmbedding(kind string) {
	globalManager.degenerateEmbeddings.WithLabelValues(kind).Inc()
}

// UpdateWorkerCapacity sets the worker pool capacity gauge.
func UpdateWorkerCapacity(n int) {
	globalManager.workerCapacity.Set(float64(n))
}

// UpdateWorkerRunning sets the busy worker gauge.
func UpdateWorkerRunning(n int) {
	globalManager.workerRunning.Set(float64(n))
}

// RecordEmbeddingRequest counts a call to an embedding provider.
func RecordEmbeddingRequest(provider, result string) {
	globalManager.embeddingRequests.WithLabelValues(provider, result).Inc()
}

// RecordEmbeddingCache counts a memo lookup ("hit" or "miss").
func RecordEmbeddingCache(result string) {
	globalManager.embeddingCache.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
