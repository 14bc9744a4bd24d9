// Package metrics defines the Prometheus collectors of the retrieval pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EmbeddingRequests *prometheus.CounterVec
	DegradedRetries   prometheus.Counter
	ChunksStored      prometheus.Counter
	ChunksSkipped     prometheus.Counter
	SearchFailures    prometheus.Counter
	SearchDuration    prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EmbeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbrag",
			Name:      "embedding_requests_total",
			Help:      "Embedding requests by outcome.",
		}, []string{"outcome"}),
		DegradedRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kbrag",
			Name:      "embedding_degraded_retries_total",
			Help:      "Chunk embeddings retried with truncated content.",
		}),
		ChunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kbrag",
			Name:      "chunks_stored_total",
			Help:      "Chunk vectors persisted.",
		}),
		ChunksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kbrag",
			Name:      "chunks_skipped_total",
			Help:      "Chunks dropped after exhausting retries or failing to persist.",
		}),
		SearchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kbrag",
			Name:      "search_failures_total",
			Help:      "Searches that degraded to an empty result.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kbrag",
			Name:      "search_duration_seconds",
			Help:      "Time spent embedding and ranking a query.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EmbeddingRequests,
			m.DegradedRetries,
			m.ChunksStored,
			m.ChunksSkipped,
			m.SearchFailures,
			m.SearchDuration,
		)
	}
	return m
}

func (m *Metrics) EmbeddingOutcome(outcome string) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DegradedRetry() {
	if m == nil {
		return
	}
	m.DegradedRetries.Inc()
}

func (m *Metrics) ChunkStored() {
	if m == nil {
		return
	}
	m.ChunksStored.Inc()
}

func (m *Metrics) ChunkSkipped() {
	if m == nil {
		return
	}
	m.ChunksSkipped.Inc()
}

func (m *Metrics) SearchFailed() {
	if m == nil {
		return
	}
	m.SearchFailures.Inc()
}

func (m *Metrics) ObserveSearch(seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(seconds)
}
