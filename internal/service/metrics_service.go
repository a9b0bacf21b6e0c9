package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and its
// background runners.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	documentsTotal  prometheus.Counter
	derivations     prometheus.Counter
	outboxDelivered *prometheus.CounterVec
	ingestRows      *prometheus.CounterVec
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	documentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_registered_total",
		Help: "Documents registered through intake",
	})

	derivations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "derivations_created_total",
		Help: "Derivations created between areas",
	})

	outboxDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Outbox delivery attempts by outcome",
	}, []string{"integration", "outcome"})

	ingestRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_total",
		Help: "Spreadsheet ingest rows by entity and outcome",
	}, []string{"entity", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		documentsTotal, derivations, outboxDelivered, ingestRows, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		documentsTotal:  documentsTotal,
		derivations:     derivations,
		outboxDelivered: outboxDelivered,
		ingestRows:      ingestRows,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordDocumentRegistered counts one intake registration.
func (m *MetricsService) RecordDocumentRegistered() {
	if m == nil {
		return
	}
	m.documentsTotal.Inc()
}

// RecordDerivation counts one derivation.
func (m *MetricsService) RecordDerivation() {
	if m == nil {
		return
	}
	m.derivations.Inc()
}

// RecordOutboxDelivery counts one delivery attempt outcome for an integration.
func (m *MetricsService) RecordOutboxDelivery(integration, outcome string) {
	if m == nil {
		return
	}
	m.outboxDelivered.WithLabelValues(integration, outcome).Inc()
}

// RecordIngestRows adds ingest row counts for an entity.
func (m *MetricsService) RecordIngestRows(entity, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ingestRows.WithLabelValues(entity, outcome).Add(float64(count))
}
