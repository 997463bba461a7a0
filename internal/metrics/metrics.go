// Package metrics exports Prometheus metrics for the enrichment pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all enrichment Prometheus metrics.
type Metrics struct {
	// Job metrics
	JobsEnqueued  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobDuration   prometheus.Histogram

	// Record metrics
	RecordsProcessed *prometheus.CounterVec

	// Provider metrics
	ProviderRequests        *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderCacheHits       *prometheus.CounterVec
	CreditsUsed             *prometheus.CounterVec

	// Worker metrics
	ActiveWorkers prometheus.Gauge
	QueueDepth    *prometheus.GaugeVec

	// SSE metrics
	SSEClients prometheus.Gauge
}

// New registers and returns the metric set. Call once per process;
// promauto panics on duplicate registration.
func New() *Metrics {
	return &Metrics{
		JobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_jobs_enqueued_total",
			Help: "Total jobs accepted and enqueued",
		}, []string{"provider", "operation"}),

		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_jobs_completed_total",
			Help: "Total jobs reaching a terminal state",
		}, []string{"provider", "status"}),

		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "enrichment_job_duration_seconds",
			Help:    "End-to-end job processing time",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		RecordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_records_processed_total",
			Help: "Total records processed, by outcome",
		}, []string{"provider", "operation", "outcome"}),

		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_provider_requests_total",
			Help: "Total provider API calls, by result code",
		}, []string{"provider", "operation", "code"}),

		ProviderRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrichment_provider_request_duration_seconds",
			Help:    "Provider API call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),

		ProviderCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_provider_cache_hits_total",
			Help: "Provider responses served from cache",
		}, []string{"provider", "operation"}),

		CreditsUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_credits_used_total",
			Help: "Provider credits consumed",
		}, []string{"provider"}),

		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_active_workers",
			Help: "Worker goroutines currently processing a job",
		}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enrichment_queue_depth",
			Help: "Current stream length per priority",
		}, []string{"priority"}),

		SSEClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_sse_clients",
			Help: "Connected SSE clients",
		}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJobCompletion records a terminal job outcome and its duration.
func (m *Metrics) RecordJobCompletion(provider, status string, duration time.Duration) {
	m.JobsCompleted.WithLabelValues(provider, status).Inc()
	m.JobDuration.Observe(duration.Seconds())
}

// RecordRecord tallies one processed record.
func (m *Metrics) RecordRecord(provider, operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.RecordsProcessed.WithLabelValues(provider, operation, outcome).Inc()
}

// RecordProviderCall records one provider API call.
func (m *Metrics) RecordProviderCall(provider, operation, code string, duration time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, operation, code).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
