// Package metrics holds the explicitly injected observability sink used by the
// embedder, session, retriever and generation collaborators.
package metrics

import (
	"time"

	"brainbolt/internal/domain"
)

// Sink receives timing and outcome observations. Implementations must be
// safe for concurrent use: embeddings are observed from worker goroutines.
type Sink interface {
	ObserveEmbedding(kind domain.Kind, d time.Duration, err error)
	ObserveIngest(res domain.IngestResult, d time.Duration, err error)
	ObserveRetrieval(d time.Duration, hits int, err error)
	ObserveGeneration(task string, d time.Duration, outputTokens int, err error)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveEmbedding(domain.Kind, time.Duration, error)      {}
func (Nop) ObserveIngest(domain.IngestResult, time.Duration, error) {}
func (Nop) ObserveRetrieval(time.Duration, int, error)              {}
func (Nop) ObserveGeneration(string, time.Duration, int, error)     {}

// Multi fans observations out to several sinks.
type Multi []Sink

func (m Multi) ObserveEmbedding(kind domain.Kind, d time.Duration, err error) {
	for _, s := range m {
		s.ObserveEmbedding(kind, d, err)
	}
}

func (m Multi) ObserveIngest(res domain.IngestResult, d time.Duration, err error) {
	for _, s := range m {
		s.ObserveIngest(res, d, err)
	}
}

func (m Multi) ObserveRetrieval(d time.Duration, hits int, err error) {
	for _, s := range m {
		s.ObserveRetrieval(d, hits, err)
	}
}

func (m Multi) ObserveGeneration(task string, d time.Duration, outputTokens int, err error) {
	for _, s := range m {
		s.ObserveGeneration(task, d, outputTokens, err)
	}
}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
