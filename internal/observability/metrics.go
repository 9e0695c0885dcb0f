// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scan metrics
	ScansTotal        *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	CandidatesFetched prometheus.Counter
	CandidatesSkipped *prometheus.CounterVec
	TokensQualified   prometheus.Counter
	ProcessedSetSize  prometheus.Gauge

	// Upstream metrics
	UpstreamLatency     *prometheus.HistogramVec
	UpstreamErrors      *prometheus.CounterVec
	PermissiveFallbacks prometheus.Counter
	HeuristicScores     prometheus.Counter
	CacheHits           *prometheus.CounterVec

	// Notification metrics
	AlertsSent      prometheus.Counter
	AlertsDropped   prometheus.Counter
	AlertQueueDepth prometheus.Gauge

	// Persistence metrics
	PersistenceErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_token_radar"
	}

	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scan cycles by trigger and status",
		}, []string{"trigger", "status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		CandidatesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_fetched_total",
			Help:      "Total number of market candidates fetched",
		}),
		CandidatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates_skipped_total",
			Help:      "Total number of candidates skipped by reason",
		}, []string{"reason"}),
		TokensQualified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "tokens_qualified_total",
			Help:      "Total number of tokens that passed all gates",
		}),
		ProcessedSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "processed_set_size",
			Help:      "Current number of addresses in the processed set",
		}),

		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency by service",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"service"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Total number of upstream errors by service",
		}, []string{"service"}),
		PermissiveFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "permissive_fallbacks_total",
			Help:      "Total number of verifications accepted without chain evidence",
		}),
		HeuristicScores: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "heuristic_scores_total",
			Help:      "Total number of safety scores derived locally",
		}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by cache",
		}, []string{"cache"}),

		AlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_sent_total",
			Help:      "Total number of alerts delivered",
		}),
		AlertsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_dropped_total",
			Help:      "Total number of alerts dropped after delivery retries",
		}),
		AlertQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Current number of queued, undelivered alerts",
		}),

		PersistenceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of persistence errors by operation",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordScan records a completed scan cycle.
func RecordScan(trigger, status string, durationSeconds float64) {
	DefaultMetrics.ScansTotal.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.ScanDuration.Observe(durationSeconds)
}

// RecordCandidatesFetched adds to the fetched candidate counter.
func RecordCandidatesFetched(n int) {
	DefaultMetrics.CandidatesFetched.Add(float64(n))
}

// RecordCandidateSkipped increments the skip counter for a reason.
func RecordCandidateSkipped(reason string) {
	DefaultMetrics.CandidatesSkipped.WithLabelValues(reason).Inc()
}

// RecordTokenQualified increments the qualified token counter.
func RecordTokenQualified() {
	DefaultMetrics.TokensQualified.Inc()
}

// UpdateProcessedSetSize updates the processed set gauge.
func UpdateProcessedSetSize(n int) {
	DefaultMetrics.ProcessedSetSize.Set(float64(n))
}

// RecordUpstreamRequest records latency and outcome for an upstream call.
func RecordUpstreamRequest(service string, seconds float64, err error) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(service).Observe(seconds)
	if err != nil {
		DefaultMetrics.UpstreamErrors.WithLabelValues(service).Inc()
	}
}

// RecordPermissiveFallback increments the permissive verification counter.
func RecordPermissiveFallback() {
	DefaultMetrics.PermissiveFallbacks.Inc()
}

// RecordHeuristicScore increments the local safety score counter.
func RecordHeuristicScore() {
	DefaultMetrics.HeuristicScores.Inc()
}

// RecordCacheHit increments the hit counter for a cache.
func RecordCacheHit(cache string) {
	DefaultMetrics.CacheHits.WithLabelValues(cache).Inc()
}

// RecordAlertSent increments the delivered alert counter.
func RecordAlertSent() {
	DefaultMetrics.AlertsSent.Inc()
}

// RecordAlertDropped increments the dropped alert counter.
func RecordAlertDropped() {
	DefaultMetrics.AlertsDropped.Inc()
}

// UpdateAlertQueueDepth updates the alert queue gauge.
func UpdateAlertQueueDepth(n int) {
	DefaultMetrics.AlertQueueDepth.Set(float64(n))
}

// RecordPersistenceError increments the persistence error counter.
func RecordPersistenceError(operation string) {
	DefaultMetrics.PersistenceErrors.WithLabelValues(operation).Inc()
}
