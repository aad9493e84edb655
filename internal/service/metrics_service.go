package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

const metricsNamespace = "clinic"

// MetricsService owns the Prometheus registry and keeps a few plain
// counters for the JSON summary endpoint. Every method is safe on a nil
// receiver, which is how tests and tools run without instrumentation.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.HistogramVec
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	queueOperations *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec

	cacheHitCount        atomic.Uint64
	cacheMissCount       atomic.Uint64
	requestCount         atomic.Uint64
	requestDurationTotal atomic.Uint64
	registrationCount    atomic.Uint64
	consultationCount    atomic.Uint64
	completionCount      atomic.Uint64
}

// NewMetricsService builds a private registry with the HTTP, cache and queue
// collectors plus the Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests by route template.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by route template.",
	}, []string{"method", "route", "status"})

	m.cacheLookups = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "lookup_seconds",
		Help:      "Cache lookups by result.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"result"})
	m.cacheWrite = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "write_seconds",
		Help:      "Cache writes and reservations.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Hits over lookups since start.",
	})

	m.queueOperations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "operation_duration_seconds",
		Help:      "Duration of queue engine mutations by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	m.registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "registrations_total",
		Help:      "Patients registered per department.",
	}, []string{"department"})
	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "transitions_total",
		Help:      "Applied patient status transitions.",
	}, []string{"event"})
	m.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "patients",
		Help:      "Patients in each active status as of the last dashboard read.",
	}, []string{"status"})

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLookups, m.cacheWrite, m.cacheHitRatio,
		m.queueOperations, m.registrations, m.transitions, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
	m.requestCount.Add(1)
	m.requestDurationTotal.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.cacheHitCount.Add(1)
	} else {
		m.cacheMissCount.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Observe(duration.Seconds())
	m.cacheHitRatio.Set(ratio(m.cacheHitCount.Load(), m.cacheMissCount.Load()))
}

// ObserveCacheWrite times a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveQueueOperation times one engine mutation.
func (m *MetricsService) ObserveQueueOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queueOperations.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordRegistration counts a newly minted token.
func (m *MetricsService) RecordRegistration(department string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(department).Inc()
	m.registrationCount.Add(1)
}

// RecordTransition counts an applied status change.
func (m *MetricsService) RecordTransition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
	switch PatientEvent(event) {
	case EventStartConsultation:
		m.consultationCount.Add(1)
	case EventCompleteConsultation:
		m.completionCount.Add(1)
	}
}

// SetQueueDepth publishes the active status counts.
func (m *MetricsService) SetQueueDepth(waiting, inConsultation int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(string(models.PatientStatusWaiting)).Set(float64(waiting))
	m.queueDepth.WithLabelValues(string(models.PatientStatusInConsultation)).Set(float64(inConsultation))
}

// Snapshot summarises the counters for /system/metrics.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits, misses := m.cacheHitCount.Load(), m.cacheMissCount.Load()
	requests := m.requestCount.Load()

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(m.requestDurationTotal.Load()) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio(hits, misses),
		Registrations:            m.registrationCount.Load(),
		Consultations:            m.consultationCount.Load(),
		Completions:              m.completionCount.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
