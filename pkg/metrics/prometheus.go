// Package metrics provides Prometheus metrics for the gradebook service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Manager owns every gradebook collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Store metrics
	operations      *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	persistErrors   *prometheus.CounterVec
	students        prometheus.Gauge
	scores          prometheus.Gauge
	subjects        prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	idempotentReplays prometheus.Counter

	// Import metrics
	queueDepth    *prometheus.GaugeVec
	importEntries *prometheus.CounterVec

	// Errors by component
	errors *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradebook",
		subsystem:        "store",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.operations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "operations_total",
		Help:        "Record store operations by name and result",
		ConstLabels: m.constLabels,
	}, []string{"operation", "result"})

	m.persistDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "persist_duration_milliseconds",
		Help:        "Time spent saving the document after a mutation",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"backend"})

	m.persistErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "persist_errors_total",
		Help:        "Failed saves; the mutation was rolled back",
		ConstLabels: m.constLabels,
	}, []string{"backend"})

	m.students = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "students",
		Help:        "Students currently in the store",
		ConstLabels: m.constLabels,
	})

	m.scores = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scores",
		Help:        "Scores currently recorded",
		ConstLabels: m.constLabels,
	})

	m.subjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "subjects",
		Help:        "Subjects ever recorded",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.idempotentReplays = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "idempotent_replays_total",
		Help:        "Requests skipped because their Idempotency-Key was already used",
		ConstLabels: m.constLabels,
	})

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_depth",
		Help:        "Entries waiting in an import queue",
		ConstLabels: m.constLabels,
	}, []string{"queue"})

	m.importEntries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "import_entries_total",
		Help:        "Imported score entries by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.errors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordOperation counts one store operation.
func (m *Manager) RecordOperation(operation, result string) {
	if !m.enabled {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordPersist observes one save.
func (m *Manager) RecordPersist(backend string, durationMs float64, failed bool) {
	if !m.enabled {
		return
	}
	m.persistDuration.WithLabelValues(backend).Observe(durationMs)
	if failed {
		m.persistErrors.WithLabelValues(backend).Inc()
	}
}

// UpdateStoreSize sets the size gauges.
func (m *Manager) UpdateStoreSize(students, scores, subjects int) {
	if !m.enabled {
		return
	}
	m.students.Set(float64(students))
	m.scores.Set(float64(scores))
	m.subjects.Set(float64(subjects))
}

// RecordHTTPRequest counts one HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordIdempotentReplay counts a replayed request.
func (m *Manager) RecordIdempotentReplay() {
	if !m.enabled {
		return
	}
	m.idempotentReplays.Inc()
}

// UpdateQueueDepth sets the depth gauge of one queue.
func (m *Manager) UpdateQueueDepth(queue string, depth int) {
	if !m.enabled {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordImportEntry counts one imported entry.
func (m *Manager) RecordImportEntry(result string) {
	if !m.enabled {
		return
	}
	m.importEntries.WithLabelValues(result).Inc()
}

// RecordError counts an error for a component.
func (m *Manager) RecordError(component, errorType string) {
	if !m.enabled {
		return
	}
	m.errors.WithLabelValues(component, errorType).Inc()
}

// Package-level helpers delegate to the global manager.

// RecordOperation counts one store operation.
func RecordOperation(operation, result string) {
	globalManager.RecordOperation(operation, result)
}

// RecordPersist observes one save.
func RecordPersist(backend string, durationMs float64, failed bool) {
	globalManager.RecordPersist(backend, durationMs, failed)
}

// UpdateStoreSize sets the size gauges.
func UpdateStoreSize(students, scores, subjects int) {
	globalManager.UpdateStoreSize(students, scores, subjects)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, durationMs)
}

// RecordError counts an error for a component.
func RecordError(component, errorType string) {
	globalManager.RecordError(component, errorType)
}

// RecordIdempotentReplay counts a replayed request.
func RecordIdempotentReplay() {
	globalManager.RecordIdempotentReplay()
}

// UpdateQueueDepth sets the depth gauge of one queue.
func UpdateQueueDepth(queue string, depth int) {
	globalManager.UpdateQueueDepth(queue, depth)
}

// RecordImportEntry counts one imported entry.
func RecordImportEntry(result string) {
	globalManager.RecordImportEntry(result)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
