// Package metrics instruments ingestion and question answering with Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	filesLoaded       prometheus.Counter
	pagesLoaded       prometheus.Counter
	filesSkipped      *prometheus.CounterVec
	chunksIndexed     *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	queries           prometheus.Counter
	failures          *prometheus.CounterVec
	ingestDuration    prometheus.Histogram
	queryDuration     prometheus.Histogram
}

// Buckets cover local lookups up to slow LLM generations.
var durationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		filesLoaded: f.NewCounter(prometheus.CounterOpts{
			Name: "contractqa_files_loaded_total",
			Help: "Documents whose pages were extracted",
		}),
		pagesLoaded: f.NewCounter(prometheus.CounterOpts{
			Name: "contractqa_pages_loaded_total",
			Help: "Pages extracted from loaded documents",
		}),
		filesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contractqa_files_skipped_total",
			Help: "Input paths skipped during loading",
		}, []string{"reason"}),
		chunksIndexed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contractqa_chunks_indexed_total",
			Help: "Chunks embedded and stored",
		}, []string{"provider"}),
		providerFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contractqa_provider_fallbacks_total",
			Help: "Builds that fell back to the local store",
		}, []string{"requested"}),
		queries: f.NewCounter(prometheus.CounterOpts{
			Name: "contractqa_queries_total",
			Help: "Questions answered",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contractqa_failures_total",
			Help: "Pipeline failures by error kind",
		}, []string{"kind"}),
		ingestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "contractqa_ingest_duration_seconds",
			Help:    "Duration of document ingestion",
			Buckets: durationBuckets,
		}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "contractqa_query_duration_seconds",
			Help:    "Duration of question answering",
			Buckets: durationBuckets,
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FileLoaded(pages int) {
	if m == nil {
		return
	}
	m.filesLoaded.Inc()
	m.pagesLoaded.Add(float64(pages))
}

func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.filesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChunksIndexed(provider string, n int) {
	if m == nil {
		return
	}
	m.chunksIndexed.WithLabelValues(provider).Add(float64(n))
}

func (m *Metrics) ProviderFallback(requested string) {
	if m == nil {
		return
	}
	m.providerFallbacks.WithLabelValues(requested).Inc()
}

func (m *Metrics) QueryAnswered(d time.Duration) {
	if m == nil {
		return
	}
	m.queries.Inc()
	m.queryDuration.Observe(d.Seconds())
}

func (m *Metrics) IngestFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}
