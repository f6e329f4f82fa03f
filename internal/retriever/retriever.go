// Package retriever turns a question into a ranked, page-tagged ContextBundle
// over one session's store and index.
package retriever

import (
	"context"
	"errors"
	"log"
	"time"

	"brainbolt/internal/domain"
	"brainbolt/internal/embedding"
	"brainbolt/internal/index"
	"brainbolt/internal/lexical"
	"brainbolt/internal/metrics"
	"brainbolt/internal/store"
)

// Options configures a Retriever.
type Options struct {
	// Backend names the vector index in RetrievalError.
	Backend string
	// Lexical, when set, answers queries whose embedding is all zeros.
	Lexical *lexical.Index
	Sink    metrics.Sink
	Logger  *log.Logger
}

// Retriever implements domain.Retriever. It reads the store and index it was
// given and never copies image payloads.
type Retriever struct {
	embedder domain.Embedder
	store    *store.Store
	index    domain.VectorIndex
	lexical  *lexical.Index
	backend  string
	sink     metrics.Sink
	logger   *log.Logger
}

func New(embedder domain.Embedder, st *store.Store, idx domain.VectorIndex, opts Options) *Retriever {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[retriever] ", log.LstdFlags)
	}
	if opts.Backend == "" {
		opts.Backend = "index"
	}
	return &Retriever{
		embedder: embedder,
		store:    st,
		index:    idx,
		lexical:  opts.Lexical,
		backend:  opts.Backend,
		sink:     metrics.OrNop(opts.Sink),
		logger:   opts.Logger,
	}
}

// Query embeds the question, searches the index and partitions the hits by
// modality. Image hits whose payload is gone are dropped.
func (r *Retriever) Query(ctx context.Context, question string, topK int, opts domain.QueryOptions) (domain.ContextBundle, error) {
	if r == nil || r.index == nil || r.store == nil {
		return domain.ContextBundle{}, domain.ErrNotIndexed
	}
	start := time.Now()
	hits, err := r.search(ctx, question, topK)
	if err != nil {
		r.sink.ObserveRetrieval(time.Since(start), 0, err)
		return domain.ContextBundle{}, err
	}
	bundle := r.assemble(question, hits, opts)
	r.sink.ObserveRetrieval(time.Since(start), len(bundle.Hits), nil)
	r.logger.Printf("query k=%d: %d texts, %d images in %s", topK, len(bundle.Texts), len(bundle.Images), time.Since(start).Round(time.Millisecond))
	return bundle, nil
}

func (r *Retriever) search(ctx context.Context, question string, topK int) ([]domain.Hit, error) {
	vec, err := r.embedder.EmbedText(ctx, question)
	if err != nil && !errors.Is(err, domain.ErrDegenerateEmbedding) {
		return nil, err
	}
	if err != nil || embedding.IsZero(vec) {
		if r.lexical == nil {
			r.logger.Printf("query %q has no usable embedding; returning no context", question)
			return nil, nil
		}
		hits, err := r.lexical.Search(question, index.ClampK(topK, r.store.Len()))
		if err != nil {
			return nil, &domain.RetrievalError{Backend: "lexical", Err: err}
		}
		return hits, nil
	}
	hits, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, &domain.RetrievalError{Backend: r.backend, Err: err}
	}
	return hits, nil
}

func (r *Retriever) assemble(question string, hits []domain.Hit, opts domain.QueryOptions) domain.ContextBundle {
	bundle := domain.ContextBundle{
		Question: question,
		Texts:    []domain.TextExcerpt{},
		Images:   []domain.ImageRef{},
		Hits:     make([]domain.RankedHit, 0, len(hits)),
	}
	for i, h := range hits {
		rank := i + 1
		f, ok := r.store.Fragment(h.Ordinal)
		if !ok {
			r.logger.Printf("hit ordinal %d has no fragment; skipping", h.Ordinal)
			continue
		}
		switch f.Kind {
		case domain.KindText:
			bundle.Texts = append(bundle.Texts, domain.TextExcerpt{Text: f.Text, Page: f.Page, Score: h.Score, Rank: rank})
		case domain.KindImage:
			if opts.MaxImages > 0 && len(bundle.Images) >= opts.MaxImages {
				continue
			}
			data, ok := r.store.Image(f.ImageID)
			if !ok {
				continue
			}
			bundle.Images = append(bundle.Images, domain.ImageRef{ID: f.ImageID, Page: f.Page, Score: h.Score, Rank: rank, Data: data})
		default:
			continue
		}
		bundle.Hits = append(bundle.Hits, domain.RankedHit{Kind: f.Kind, Ordinal: f.Ordinal, Page: f.Page, Score: h.Score, Rank: rank})
	}
	return bundle
}
