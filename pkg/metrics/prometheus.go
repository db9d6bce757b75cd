// Package metrics provides Prometheus metrics for the FaceGate access engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the FaceGate service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline throughput
	framesReceived   *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
	batchesProcessed prometheus.Counter
	batchFlushSize   prometheus.Histogram

	// Perception
	detections        prometheus.Counter
	detectionFailures prometheus.Counter
	detectLatency     prometheus.Histogram
	encodeLatency     prometheus.Histogram
	encodeFailures    prometheus.Counter
	lowQualityFaces   prometheus.Counter

	// Encoding cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	// Matching
	matchesIdentified   prometheus.Counter
	matchesUnidentified prometheus.Counter
	matchLatency        prometheus.Histogram

	// Access decisions
	decisions *prometheus.CounterVec

	// Identity index
	indexEntries    prometheus.Gauge
	indexIdentities prometheus.Gauge
	indexQueryLatency prometheus.Histogram

	// Worker pool and queue
	workQueueSize prometheus.Gauge
	workerCount   prometheus.Gauge

	// Event dispatch
	eventsPublished prometheus.Counter
	eventsDropped   *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facegate",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesReceived = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_received_total",
		Help:      "Total number of frames submitted per camera",
	}, []string{"camera"})

	m.framesDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Total number of frames shed by the drop-oldest policy per camera",
	}, []string{"camera"})

	m.batchesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_processed_total",
		Help:      "Total number of frame batches run through detection",
	})

	m.batchFlushSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_flush_size",
		Help:      "Number of frames per flushed batch",
		Buckets:   []float64{1, 2, 4, 8, 16, 32},
	})

	m.detections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_total",
		Help:      "Total number of face detections above the confidence floor",
	})

	m.detectionFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detection_failures_total",
		Help:      "Total number of per-frame detector failures (frame skipped)",
	})

	m.detectLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detect_latency_milliseconds",
		Help:      "Histogram of detector call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.encodeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "encode_latency_milliseconds",
		Help:      "Histogram of encoder call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.encodeFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "encode_failures_total",
		Help:      "Total number of per-face encoder failures (face dropped)",
	})

	m.lowQualityFaces = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "low_quality_faces_total",
		Help:      "Total number of faces rejected by the quality gate",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "encoding_cache_hits_total",
		Help:      "Total number of encoding cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "encoding_cache_misses_total",
		Help:      "Total number of encoding cache misses",
	})

	m.cacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "encoding_cache_entries",
		Help:      "Current number of entries in the encoding cache",
	})

	m.matchesIdentified = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_identified_total",
		Help:      "Total number of faces matched to an enrolled identity",
	})

	m.matchesUnidentified = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_unidentified_total",
		Help:      "Total number of faces that failed to match any identity",
	})

	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Histogram of matching latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.decisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "access_decisions_total",
		Help:      "Total number of access decisions by reason",
	}, []string{"reason", "granted"})

	m.indexEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "index_entries",
		Help:      "Current number of encoding entries in the identity index",
	})

	m.indexIdentities = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "index_identities",
		Help:      "Current number of distinct identities in the identity index",
	})

	m.indexQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "index_query_latency_milliseconds",
		Help:      "Histogram of identity index query latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "work_queue_size",
		Help:      "Current number of batches waiting in the worker queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of pipeline workers",
	})

	m.eventsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_published_total",
		Help:      "Total number of events published on the dispatcher",
	})

	m.eventsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "Total number of events dropped per slow subscriber",
	}, []string{"subscriber"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total number of errors by component",
	}, []string{"component", "error_type"})
}

// RecordFrameReceived increments the received-frames counter for a camera.
func RecordFrameReceived(cameraID string) {
	globalManager.framesReceived.WithLabelValues(cameraID).Inc()
}

// RecordFrameDropped increments the dropped-frames counter for a camera.
func RecordFrameDropped(cameraID string) {
	globalManager.framesDropped.WithLabelValues(cameraID).Inc()
}

// RecordBatchProcessed increments the processed-batches counter.
func RecordBatchProcessed(size int) {
	globalManager.batchesProcessed.Inc()
	globalManager.batchFlushSize.Observe(float64(size))
}

// RecordDetection increments the detections counter.
func RecordDetection() {
	globalManager.detections.Inc()
}

// RecordDetectionFailure increments the detector-failure counter.
func RecordDetectionFailure() {
	globalManager.detectionFailures.Inc()
}

// RecordDetectLatency records detector call latency in milliseconds.
func RecordDetectLatency(latencyMs float64) {
	globalManager.detectLatency.Observe(latencyMs)
}

// RecordEncodeLatency records encoder call latency in milliseconds.
func RecordEncodeLatency(latencyMs float64) {
	globalManager.encodeLatency.Observe(latencyMs)
}

// RecordEncodeFailure increments the encoder-failure counter.
func RecordEncodeFailure() {
	globalManager.encodeFailures.Inc()
}

// RecordLowQualityFace increments the quality-gate rejection counter.
func RecordLowQualityFace() {
	globalManager.lowQualityFaces.Inc()
}

// RecordCacheHit increments the encoding cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the encoding cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheSize sets the current encoding cache entry count.
func UpdateCacheSize(size int) {
	globalManager.cacheSize.Set(float64(size))
}

// RecordMatchIdentified increments the identified-matches counter.
func RecordMatchIdentified() {
	globalManager.matchesIdentified.Inc()
}

// RecordMatchUnidentified increments the unidentified-matches counter.
func RecordMatchUnidentified() {
	globalManager.matchesUnidentified.Inc()
}

// RecordMatchLatency records matching latency in milliseconds.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordDecision increments the decision counter for a reason.
func RecordDecision(reason string, granted bool) {
	g := "false"
	if granted {
		g = "true"
	}
	globalManager.decisions.WithLabelValues(reason, g).Inc()
}

// UpdateIndexEntries sets the current index encoding-entry count.
func UpdateIndexEntries(count int) {
	globalManager.indexEntries.Set(float64(count))
}

// UpdateIndexIdentities sets the current distinct-identity count.
func UpdateIndexIdentities(count int) {
	globalManager.indexIdentities.Set(float64(count))
}

// RecordIndexQueryLatency records index query latency in milliseconds.
func RecordIndexQueryLatency(latencyMs float64) {
	globalManager.indexQueryLatency.Observe(latencyMs)
}

// UpdateWorkQueueSize sets the current worker queue depth.
func UpdateWorkQueueSize(size int) {
	globalManager.workQueueSize.Set(float64(size))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordEventPublished increments the published-events counter.
func RecordEventPublished() {
	globalManager.eventsPublished.Inc()
}

// RecordEventDropped increments the per-subscriber dropped-events counter.
func RecordEventDropped(subscriber string) {
	globalManager.eventsDropped.WithLabelValues(subscriber).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
