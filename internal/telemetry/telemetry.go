// Package telemetry exposes Prometheus metrics for the query service and
// the ingestion job.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors, registered on a private registry so tests
// can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal        *prometheus.CounterVec
	QueryDuration       prometheus.Histogram
	GenerationFallbacks *prometheus.CounterVec
	ChunksIngested      prometheus.Counter
	ChunksFailed        prometheus.Counter
}

// Query status label values.
const (
	StatusOK          = "ok"
	StatusNotReady    = "not_ready"
	StatusBadRequest  = "bad_request"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tafsiir_queries_total",
		Help: "Chat queries by outcome status.",
	}, []string{"status"})
	m.QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tafsiir_query_duration_seconds",
		Help:    "End-to-end chat query latency.",
		Buckets: prometheus.DefBuckets,
	})
	m.GenerationFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tafsiir_generation_fallbacks_total",
		Help: "Generation attempts that fell through to the next model.",
	}, []string{"model"})
	m.ChunksIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tafsiir_chunks_ingested_total",
		Help: "Chunks successfully embedded and written during ingestion.",
	})
	m.ChunksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tafsiir_chunks_failed_total",
		Help: "Chunks skipped during ingestion after an embedding or write failure.",
	})

	m.registry.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.GenerationFallbacks,
		m.ChunksIngested,
		m.ChunksFailed,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
