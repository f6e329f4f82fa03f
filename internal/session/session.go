// Package session owns the fragment store and vector index of one ingested
// corpus and mediates every ingest and query against them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"brainbolt/internal/domain"
	"brainbolt/internal/embedding"
	"brainbolt/internal/index/flat"
	"brainbolt/internal/lexical"
	"brainbolt/internal/metrics"
	"brainbolt/internal/retriever"
	"brainbolt/internal/store"
)

// DefaultWorkers bounds concurrent embedding calls during ingest.
const DefaultWorkers = 4

// State is the lifecycle position of a Session.
type State int

const (
	StateCreated State = iota
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IndexFactory creates an empty vector index for one ingest.
type IndexFactory func() (domain.VectorIndex, error)

// Options configures a Session.
type Options struct {
	Workers         int
	IndexBackend    string
	NewIndex        IndexFactory
	LexicalFallback bool
	Sink            metrics.Sink
	Logger          *log.Logger
}

// canonicalEmbedder is implemented by embedders that can skip re-decoding an
// image that ingest already canonicalized.
type canonicalEmbedder interface {
	EmbedCanonical(ctx context.Context, img embedding.Image) ([]float32, error)
}

// Session is created empty, becomes ready after a successful Ingest, and is
// unusable after Dispose. Re-ingest fully replaces the previous corpus.
type Session struct {
	id       string
	embedder domain.Embedder
	chunker  domain.Chunker
	opts     Options
	logger   *log.Logger

	mu        sync.RWMutex
	state     State
	store     *store.Store
	index     domain.VectorIndex
	lexical   *lexical.Index
	retriever *retriever.Retriever
	result    domain.IngestResult
}

func New(id string, embedder domain.Embedder, chunker domain.Chunker, opts Options) *Session {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[session] ", log.LstdFlags)
	}
	if opts.NewIndex == nil {
		opts.NewIndex = func() (domain.VectorIndex, error) { return flat.New(), nil }
		opts.IndexBackend = "flat"
	}
	opts.Sink = metrics.OrNop(opts.Sink)
	return &Session{
		id:       id,
		embedder: embedder,
		chunker:  chunker,
		opts:     opts,
		logger:   opts.Logger,
		store:    store.New(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Result returns the counts of the last successful ingest.
func (s *Session) Result() domain.IngestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

type job struct {
	kind  domain.Kind
	text  string
	page  int
	image domain.ImageItem
}

type slot struct {
	fragment domain.Fragment
	png      []byte
}

// Ingest replaces the session contents with the fragments of bag. Individual
// fragments that fail to embed are logged and skipped.
func (s *Session) Ingest(ctx context.Context, bag domain.Bag) (res domain.IngestResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return res, domain.ErrSessionClosed
	}
	start := time.Now()
	defer func() { s.opts.Sink.ObserveIngest(res, time.Since(start), err) }()

	if err := bag.Validate(); err != nil {
		return res, err
	}
	if bag.IsEmpty() {
		return res, domain.ErrEmptyIngest
	}
	s.resetLocked()

	jobs := s.plan(bag)
	slots := make([]*slot, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			out, err := s.embed(gctx, j)
			if err != nil {
				var ee *domain.EmbeddingError
				if errors.As(err, &ee) && gctx.Err() == nil {
					s.logger.Printf("warning: skipping %s fragment on page %d: %v", j.kind, j.page, err)
					return nil
				}
				return err
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("ingest %s: %w", s.id, err)
	}

	fragments := make([]domain.Fragment, 0, len(slots))
	images := make(map[string][]byte)
	for _, sl := range slots {
		if sl == nil {
			res.Skipped++
			continue
		}
		if sl.fragment.Kind == domain.KindImage {
			images[sl.fragment.ImageID] = sl.png
			res.IndexedImageFragments++
		} else {
			res.IndexedTextFragments++
		}
		fragments = append(fragments, sl.fragment)
	}
	if len(fragments) == 0 {
		return res, domain.ErrNoContentIndexed
	}
	if err := s.store.Replace(fragments, images); err != nil {
		return res, err
	}

	idx, err := s.opts.NewIndex()
	if err != nil {
		s.store.Reset()
		return res, fmt.Errorf("create index: %w", err)
	}
	if err := idx.Build(ctx, s.store.Fragments()); err != nil {
		_ = idx.Close()
		s.store.Reset()
		return res, fmt.Errorf("build index: %w", err)
	}
	s.index = idx

	if s.opts.LexicalFallback {
		lex, err := lexical.Build(s.store.Fragments())
		if err != nil {
			s.logger.Printf("warning: lexical fallback disabled: %v", err)
		} else {
			s.lexical = lex
		}
	}
	s.retriever = retriever.New(s.embedder, s.store, s.index, retriever.Options{
		Backend: s.opts.IndexBackend,
		Lexical: s.lexical,
		Sink:    s.opts.Sink,
		Logger:  s.logger,
	})
	s.state = StateReady
	s.result = res
	s.logger.Printf("session %s indexed %d text and %d image fragments (%d skipped) in %s",
		s.id, res.IndexedTextFragments, res.IndexedImageFragments, res.Skipped, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// Query retrieves the top-k fragments for question.
func (s *Session) Query(ctx context.Context, question string, topK int, opts domain.QueryOptions) (domain.ContextBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case StateDisposed:
		return domain.ContextBundle{}, domain.ErrSessionClosed
	case StateReady:
		return s.retriever.Query(ctx, question, topK, opts)
	default:
		return domain.ContextBundle{}, domain.ErrNotIndexed
	}
}

// Dispose releases the store and index. It is idempotent.
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return nil
	}
	err := s.resetLocked()
	s.state = StateDisposed
	return err
}

func (s *Session) resetLocked() error {
	var errs []error
	if s.index != nil {
		errs = append(errs, s.index.Close())
		s.index = nil
	}
	if s.lexical != nil {
		errs = append(errs, s.lexical.Close())
		s.lexical = nil
	}
	s.store.Reset()
	s.retriever = nil
	s.result = domain.IngestResult{}
	if s.state == StateReady {
		s.state = StateCreated
	}
	return errors.Join(errs...)
}

func (s *Session) plan(bag domain.Bag) []job {
	var jobs []job
	for _, p := range bag.TextPages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, c := range s.chunker.Split(p.Text, p.Page) {
			jobs = append(jobs, job{kind: domain.KindText, text: c.Text, page: c.Page})
		}
	}
	for _, img := range bag.Images {
		jobs = append(jobs, job{kind: domain.KindImage, page: img.Page, image: img})
	}
	return jobs
}

func (s *Session) embed(ctx context.Context, j job) (*slot, error) {
	if j.kind == domain.KindText {
		vec, err := s.embedder.EmbedText(ctx, j.text)
		if err != nil {
			return nil, err
		}
		if embedding.IsZero(vec) {
			return nil, &domain.EmbeddingError{Kind: domain.KindText, Ref: fmt.Sprintf("page %d", j.page), Err: domain.ErrDegenerateEmbedding}
		}
		return &slot{fragment: domain.NewTextFragment(j.text, j.page, vec)}, nil
	}
	img, err := embedding.Canonicalize(j.image.Data)
	if err != nil {
		return nil, &domain.EmbeddingError{Kind: domain.KindImage, Ref: j.image.ID, Err: err}
	}
	var vec []float32
	if ce, ok := s.embedder.(canonicalEmbedder); ok {
		vec, err = ce.EmbedCanonical(ctx, img)
	} else {
		vec, err = s.embedder.EmbedImage(ctx, img.PNG)
	}
	if err != nil {
		return nil, err
	}
	if embedding.IsZero(vec) {
		return nil, &domain.EmbeddingError{Kind: domain.KindImage, Ref: j.image.ID, Err: domain.ErrDegenerateEmbedding}
	}
	return &slot{fragment: domain.NewImageFragment(j.image.ID, j.page, vec), png: img.PNG}, nil
}
