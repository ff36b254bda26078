// Package metrics defines the Prometheus metric collectors used by the
// upload and ingestion services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocumentsUploadedTotal prometheus.Counter
	PublishFailuresTotal   *prometheus.CounterVec

	EventsConsumedTotal  prometheus.Counter
	MalformedEventsTotal prometheus.Counter
	IngestionsTotal      *prometheus.CounterVec
	ExtractionDuration   prometheus.Histogram

	StatusCacheHitsTotal   prometheus.Counter
	StatusCacheMissesTotal prometheus.Counter

	OutcomeEventsPublishedTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocumentsUploadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_uploaded_total",
				Help: "Total documents durably recorded by the upload service.",
			},
		),
		PublishFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "publish_failures_total",
				Help: "Broker publish failures after commit, by failure policy (abort, degrade).",
			},
			[]string{"policy"},
		),
		EventsConsumedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "events_consumed_total",
				Help: "Total document-uploaded events received by the consumer, including redeliveries.",
			},
		),
		MalformedEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "malformed_events_total",
				Help: "Poison messages discarded without processing.",
			},
		),
		IngestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestions_total",
				Help: "Terminal ingestion records written, by status (DONE, FAILED).",
			},
			[]string{"status"},
		),
		ExtractionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extraction_duration_seconds",
				Help:    "Text extraction latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		StatusCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "status_cache_hits_total",
				Help: "Status query results served from the Redis cache.",
			},
		),
		StatusCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "status_cache_misses_total",
				Help: "Status queries that fell through to the ingestion store.",
			},
		),
		OutcomeEventsPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outcome_events_published_total",
				Help: "IngestionCompleted events published to the outcomes topic.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocumentsUploadedTotal,
		m.PublishFailuresTotal,
		m.EventsConsumedTotal,
		m.MalformedEventsTotal,
		m.IngestionsTotal,
		m.ExtractionDuration,
		m.StatusCacheHitsTotal,
		m.StatusCacheMissesTotal,
		m.OutcomeEventsPublishedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
