package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anything_ai_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// Chat stream metrics
	chatStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_chat_streams_total",
		Help: "Total number of chat streams by outcome",
	}, []string{"outcome"})

	// Upstream metrics
	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anything_ai_upstream_request_duration_seconds",
		Help:    "Duration of upstream generation requests",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"model", "status"})

	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_upstream_retries_total",
		Help: "Total number of upstream retries after rate limiting",
	}, []string{"model"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_tokens_total",
		Help: "Total number of tokens by direction",
	}, []string{"model", "direction"})

	// Queue gauges
	queueActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anything_ai_queue_active",
		Help: "Number of queued tasks currently executing",
	})

	queuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anything_ai_queue_pending",
		Help: "Number of queued tasks waiting for a slot",
	})

	// Lookup cache metrics
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_lookup_cache_hits_total",
		Help: "Total number of lookup cache hits",
	}, []string{"namespace"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_lookup_cache_misses_total",
		Help: "Total number of lookup cache misses",
	}, []string{"namespace"})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anything_ai_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anything_ai_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordChatStream records how a chat stream ended
func (m *Metrics) RecordChatStream(outcome string) {
	chatStreams.WithLabelValues(outcome).Inc()
}

// RecordUpstreamRequest records one upstream generation call
func (m *Metrics) RecordUpstreamRequest(model, status string, duration time.Duration) {
	upstreamRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a retry after a rate-limit response
func (m *Metrics) RecordUpstreamRetry(model string) {
	upstreamRetries.WithLabelValues(model).Inc()
}

// RecordTokens records token usage of a completed request
func (m *Metrics) RecordTokens(model string, input, output int) {
	tokensTotal.WithLabelValues(model, "input").Add(float64(input))
	tokensTotal.WithLabelValues(model, "output").Add(float64(output))
}

// SetQueue updates the queue gauges
func (m *Metrics) SetQueue(active, pending int) {
	queueActive.Set(float64(active))
	queuePending.Set(float64(pending))
}

// RecordCacheHit records a lookup cache hit
func (m *Metrics) RecordCacheHit(namespace string) {
	cacheHits.WithLabelValues(namespace).Inc()
}

// RecordCacheMiss records a lookup cache miss
func (m *Metrics) RecordCacheMiss(namespace string) {
	cacheMisses.WithLabelValues(namespace).Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string) {
	storageOperations.WithLabelValues(operation, status).Inc()
}

// Instrument is mux middleware recording request count and duration per route template.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
