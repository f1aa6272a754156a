package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	storeQueryDuration *prometheus.HistogramVec
	resolutions        *prometheus.CounterVec
	orphans            *prometheus.CounterVec
	auditJobs          *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	storeQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identity_store_query_duration_seconds",
		Help:    "Duration of identity store lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "collection", "operation", "status"})

	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reference_resolutions_total",
		Help: "Reference resolutions by path and outcome",
	}, []string{"path", "outcome"})

	orphans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orphaned_references_detected_total",
		Help: "Orphaned references reported by consistency checks",
	}, []string{"entity"})

	auditJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_jobs_total",
		Help: "Audit report jobs by terminal status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, storeQueryDuration, resolutions, orphans, auditJobs, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		storeQueryDuration: storeQueryDuration,
		resolutions:        resolutions,
		orphans:            orphans,
		auditJobs:          auditJobs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveStoreQuery records identity store lookup timing.
func (m *MetricsService) ObserveStoreQuery(backend, collection, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeQueryDuration.WithLabelValues(backend, collection, operation, status).Observe(duration.Seconds())
}

// ObserveResolution counts a resolver outcome.
func (m *MetricsService) ObserveResolution(path, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(path, outcome).Inc()
}

// ObserveOrphan counts one orphaned reference.
func (m *MetricsService) ObserveOrphan(entityType string) {
	if m == nil {
		return
	}
	m.orphans.WithLabelValues(entityType).Inc()
}

// ObserveAuditJob counts an audit job reaching a terminal status.
func (m *MetricsService) ObserveAuditJob(status string) {
	if m == nil {
		return
	}
	m.auditJobs.WithLabelValues(status).Inc()
}
