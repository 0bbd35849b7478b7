// Package metrics provides Prometheus metrics for the walkplan service.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every walkplan metric family.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Intake
	walksReceived  prometheus.Counter
	walksDuplicate prometheus.Counter
	walksInvalid   prometheus.Counter
	walksStored    prometheus.Counter

	// Engine
	scheduleComputations prometheus.Counter
	scheduleLatency      prometheus.Histogram
	scheduleSelected     prometheus.Histogram
	scheduleRejected     prometheus.Counter
	conflictsDetected    *prometheus.CounterVec
	alternativesSuggest  prometheus.Counter
	assignments          *prometheus.CounterVec

	// Cache
	cacheLookups *prometheus.CounterVec

	// Repository
	repositoryWalks         prometheus.Gauge
	repositoryWalkers       prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go metrics out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Metrics are registered on the
// configured registry; when disabled they are registered on a private
// registry that is never exported.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "walkplan",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every family
	auto := promauto.With(m.registry)

	m.walksReceived = auto.NewCounter(m.counter("walks_received_total", "Walk postings accepted by the API"))
	m.walksDuplicate = auto.NewCounter(m.counter("walks_duplicate_total", "Walk postings dropped as duplicates"))
	m.walksInvalid = auto.NewCounter(m.counter("walks_invalid_total", "Walk postings that failed validation"))
	m.walksStored = auto.NewCounter(m.counter("walks_stored_total", "Walks written to the pool"))

	m.scheduleComputations = auto.NewCounter(m.counter("schedule_computations_total", "Optimal schedule computations"))
	m.scheduleLatency = auto.NewHistogram(m.histogram("schedule_latency_milliseconds", "Optimal schedule computation latency", nil))
	m.scheduleSelected = auto.NewHistogram(m.histogram("schedule_selected_walks", "Walks selected per schedule",
		[]float64{0, 1, 2, 3, 5, 8, 13, 21, 34}))
	m.scheduleRejected = auto.NewCounter(m.counter("schedule_rejected_candidates_total", "Candidates excluded before selection"))
	m.conflictsDetected = auto.NewCounterVec(m.counter("conflicts_detected_total", "Conflicts found by level"), []string{"level"})
	m.alternativesSuggest = auto.NewCounter(m.counter("alternatives_suggested_total", "Alternative slots proposed"))
	m.assignments = auto.NewCounterVec(m.counter("assignments_total", "Assignment attempts by outcome"), []string{"outcome"})

	m.cacheLookups = auto.NewCounterVec(m.counter("cache_lookups_total", "Schedule cache lookups by result"), []string{"result"})

	m.repositoryWalks = auto.NewGauge(m.gauge("repository_walks", "Open walks in the pool"))
	m.repositoryWalkers = auto.NewGauge(m.gauge("repository_walkers", "Registered walker profiles"))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogram("repository_update_latency_milliseconds", "Repository write latency", nil))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_latency_milliseconds", "Repository read latency", nil))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Postings waiting in the intake queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Intake queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Intake queue size over capacity"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total", "Postings enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total", "Postings dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Enqueue failures"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Enqueue latency", nil))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured intake workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers handling a posting"))
	m.workerIdleCount = auto.NewGauge(m.gauge("worker_idle_count", "Workers waiting for a posting"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Per-posting processing latency", nil))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Postings the workers failed to process"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration", nil),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogram("system_gc_pause_time_milliseconds", "Most recent GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordWalkReceived counts an accepted posting.
func RecordWalkReceived() { globalManager.walksReceived.Inc() }

// RecordWalkDuplicate counts a posting dropped by the deduper.
func RecordWalkDuplicate() { globalManager.walksDuplicate.Inc() }

// RecordWalkInvalid counts a posting that failed validation.
func RecordWalkInvalid() { globalManager.walksInvalid.Inc() }

// RecordWalkStored counts a walk written to the pool.
func RecordWalkStored() { globalManager.walksStored.Inc() }

// RecordSchedule records one optimal schedule computation.
func RecordSchedule(latencyMs float64, selected, rejected int) {
	globalManager.scheduleComputations.Inc()
	globalManager.scheduleLatency.Observe(latencyMs)
	globalManager.scheduleSelected.Observe(float64(selected))
	globalManager.scheduleRejected.Add(float64(rejected))
}

// RecordConflict counts a conflict with the given level label.
func RecordConflict(level string) { globalManager.conflictsDetected.WithLabelValues(level).Inc() }

// RecordAlternatives counts proposed alternative slots.
func RecordAlternatives(n int) { globalManager.alternativesSuggest.Add(float64(n)) }

// RecordAssignment counts an assignment attempt by outcome
// (committed, conflict, error).
func RecordAssignment(outcome string) { globalManager.assignments.WithLabelValues(outcome).Inc() }

// RecordCacheLookup counts a cache lookup by result (hit, miss, error).
func RecordCacheLookup(result string) { globalManager.cacheLookups.WithLabelValues(result).Inc() }

// UpdateRepositoryWalks sets the number of open walks.
func UpdateRepositoryWalks(n int) { globalManager.repositoryWalks.Set(float64(n)) }

// UpdateRepositoryWalkers sets the number of walker profiles.
func UpdateRepositoryWalkers(n int) { globalManager.repositoryWalkers.Set(float64(n)) }

// RecordRepositoryUpdateLatency records a repository write.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records a repository read.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records per-posting processing time.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// CollectSystem samples runtime statistics once.
func CollectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.HeapInuse)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
	}
}

// RunSystemCollector samples runtime statistics every refresh interval until
// ctx is done.
func RunSystemCollector(ctx context.Context) {
	ticker := time.NewTicker(globalManager.refreshInterval)
	defer ticker.Stop()
	CollectSystem()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			CollectSystem()
		}
	}
}

var buildInfoOnce sync.Once //nolint:gochecknoglobals // guards a one-time registration

// RegisterBuildInfo adds the Go build info collector to the custom registry.
// Runtime gauges come from CollectSystem, so the Go collector stays off.
func RegisterBuildInfo() {
	buildInfoOnce.Do(func() {
		customRegistry.MustRegister(collectors.NewBuildInfoCollector())
	})
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
