package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brainbolt/internal/domain"
)

// Prometheus records observations into a private registry so that several
// instances never collide on process-wide state.
type Prometheus struct {
	registry   *prometheus.Registry
	embeddings *prometheus.HistogramVec
	ingests    *prometheus.CounterVec
	fragments  *prometheus.CounterVec
	retrievals *prometheus.HistogramVec
	generation *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "brainbolt"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		embeddings: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Latency of single fragment or query embeddings.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingests_total",
			Help:      "Ingest calls by outcome.",
		}, []string{"outcome"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_fragments_total",
			Help:      "Fragments indexed by modality, plus skipped ones.",
		}, []string{"kind"}),
		retrievals: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of retriever queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generative calls by task.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"task", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_output_tokens_total",
			Help:      "Output tokens produced by generation backends.",
		}, []string{"task"}),
	}
	p.registry.MustRegister(p.embeddings, p.ingests, p.fragments, p.retrievals, p.generation, p.tokens)
	return p
}

// Registry exposes the private registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) ObserveEmbedding(kind domain.Kind, d time.Duration, err error) {
	p.embeddings.WithLabelValues(kind.String(), outcome(err)).Observe(d.Seconds())
}

func (p *Prometheus) ObserveIngest(res domain.IngestResult, _ time.Duration, err error) {
	p.ingests.WithLabelValues(outcome(err)).Inc()
	p.fragments.WithLabelValues("text").Add(float64(res.IndexedTextFragments))
	p.fragments.WithLabelValues("image").Add(float64(res.IndexedImageFragments))
	p.fragments.WithLabelValues("skipped").Add(float64(res.Skipped))
}

func (p *Prometheus) ObserveRetrieval(d time.Duration, _ int, err error) {
	p.retrievals.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

func (p *Prometheus) ObserveGeneration(task string, d time.Duration, outputTokens int, err error) {
	p.generation.WithLabelValues(task, outcome(err)).Observe(d.Seconds())
	if outputTokens > 0 {
		p.tokens.WithLabelValues(task).Add(float64(outputTokens))
	}
}
