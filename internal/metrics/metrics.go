// Package metrics provides Prometheus metrics for the gallery service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// GalleryMetrics contains the catalog, codec and HTTP metrics.
type GalleryMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	uploadBytes       prometheus.Histogram
	codecDuration     prometheus.Histogram
	cleanupTasksTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewGalleryMetrics creates and registers the metrics on registry.
func NewGalleryMetrics(registry *prometheus.Registry) (*GalleryMetrics, error) {
	m := &GalleryMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GalleryMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation", "status"}, // operation: create, update, delete, like, list_page; status: success, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_operation_duration_seconds",
			Help:    "Time taken by catalog operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"operation"},
	)

	m.uploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_upload_bytes",
			Help:    "Size of normalized blobs sent to storage",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
		},
	)

	m.codecDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_codec_duration_seconds",
			Help:    "Time taken to normalize an uploaded image",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	m.cleanupTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_blob_cleanup_tasks_total",
			Help: "Blob removals deferred to the cleanup worker",
		},
		[]string{"reason"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

func (m *GalleryMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.uploadBytes,
		m.codecDuration,
		m.cleanupTasksTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	}
}

// Describe implements the Collector interface
func (m *GalleryMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *GalleryMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// Registry returns the registry the metrics live on, for the /metrics handler.
func (m *GalleryMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation counts a catalog operation and observes its duration.
func (m *GalleryMetrics) RecordOperation(operation string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *GalleryMetrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Observe(float64(bytes))
}

func (m *GalleryMetrics) RecordCodec(seconds float64) {
	if m == nil {
		return
	}
	m.codecDuration.Observe(seconds)
}

func (m *GalleryMetrics) RecordCleanupTask(reason string) {
	if m == nil {
		return
	}
	m.cleanupTasksTotal.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *GalleryMetrics) RecordHTTPRequest(method, path string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
