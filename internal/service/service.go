// Package service runs whole requests: load sources into a session, then
// summarize, quiz or answer over it. The CLI and the HTTP API both use it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"brainbolt/internal/domain"
	"brainbolt/internal/metrics"
	"brainbolt/internal/processor"
	"brainbolt/internal/session"
)

const (
	ModeSummarize = "summarize"
	ModeQuiz      = "quiz"
	ModeAnswer    = "answer"
)

var (
	// ErrUnsupportedMode is returned for unknown request modes.
	ErrUnsupportedMode = errors.New("unsupported mode")
	// ErrUnknownSession is returned when a session id is not live.
	ErrUnknownSession = errors.New("unknown or expired session")
)

// Loader turns sources into one bag.
type Loader interface {
	LoadAll(ctx context.Context, sources []string) (domain.Bag, error)
}

type Options struct {
	TopK          int
	QuizMaxImages int
	History       *metrics.History
	Logger        *log.Logger
}

type Service struct {
	loader    Loader
	sessions  *session.Manager
	generator domain.Generator
	topK      int
	maxImages int
	history   *metrics.History
	logger    *log.Logger
}

func New(loader Loader, sessions *session.Manager, generator domain.Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[service] ", log.LstdFlags)
	}
	if opts.History == nil {
		opts.History = metrics.NewHistory(0, nil)
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Service{
		loader:    loader,
		sessions:  sessions,
		generator: generator,
		topK:      opts.TopK,
		maxImages: opts.QuizMaxImages,
		history:   opts.History,
		logger:    opts.Logger,
	}
}

// History exposes the request trace ring.
func (s *Service) History() *metrics.History { return s.history }

// Open loads sources into a fresh managed session. On failure the session is
// disposed and not registered.
func (s *Service) Open(ctx context.Context, sources []string) (*session.Session, domain.IngestResult, error) {
	return s.open(ctx, sources, metrics.Nop{})
}

func (s *Service) open(ctx context.Context, sources []string, sink metrics.Sink) (*session.Session, domain.IngestResult, error) {
	start := time.Now()
	bag, err := s.loader.LoadAll(ctx, sources)
	if err != nil {
		sink.ObserveIngest(domain.IngestResult{}, time.Since(start), err)
		return nil, domain.IngestResult{}, err
	}
	sess := s.sessions.Create()
	res, err := sess.Ingest(ctx, bag)
	sink.ObserveIngest(res, time.Since(start), err)
	if err != nil {
		_ = s.sessions.Dispose(sess.ID())
		return nil, res, err
	}
	return sess, res, nil
}

// Session returns a live session by id.
func (s *Service) Session(id string) (*session.Session, bool) { return s.sessions.Get(id) }

// Close disposes a session.
func (s *Service) Close(id string) error { return s.sessions.Dispose(id) }

// Request is one processing request. Either Sources or SessionID must be set.
type Request struct {
	Sources      []string `json:"sources,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	Mode         string   `json:"mode"`
	SummaryType  string   `json:"summary_type,omitempty"`
	NumQuestions int      `json:"num_questions,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Question     string   `json:"question,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
}

type Result struct {
	SessionID string              `json:"session_id"`
	Mode      string              `json:"mode"`
	Ingest    domain.IngestResult `json:"ingest"`
	Summary   *processor.Summary  `json:"summary,omitempty"`
	Quiz      *processor.Quiz     `json:"quiz,omitempty"`
	Answer    *processor.Answer   `json:"answer,omitempty"`
	Trace     metrics.TraceRecord `json:"trace"`
}

// Process runs one request end to end and records its trace.
func (s *Service) Process(ctx context.Context, req Request) (res Result, err error) {
	if req.Mode == "" {
		req.Mode = ModeSummarize
	}
	trace := s.history.Begin(uuid.NewString(), req.Mode)
	defer func() {
		if err != nil {
			trace.Fail(err)
		}
		res.Trace = trace.End()
	}()
	switch req.Mode {
	case ModeSummarize, ModeQuiz, ModeAnswer:
	default:
		return res, fmt.Errorf("%w: %q", ErrUnsupportedMode, req.Mode)
	}

	var sess *session.Session
	if req.SessionID != "" {
		var ok bool
		if sess, ok = s.sessions.Get(req.SessionID); !ok {
			return res, ErrUnknownSession
		}
		res.Ingest = sess.Result()
	} else {
		if sess, res.Ingest, err = s.open(ctx, req.Sources, trace); err != nil {
			return res, err
		}
	}
	res.SessionID = sess.ID()
	res.Mode = req.Mode

	r := tracedRetriever{inner: sess, sink: trace}
	g := tracedGenerator{inner: s.generator, sink: trace}
	switch req.Mode {
	case ModeSummarize:
		out, err := processor.NewSummarizer(r, g).Summarize(ctx, req.SummaryType)
		if err != nil {
			return res, err
		}
		res.Summary = &out
	case ModeQuiz:
		out, err := processor.NewQuizGenerator(r, g, s.maxImages).Generate(ctx, req.NumQuestions, req.Difficulty)
		if err != nil {
			return res, err
		}
		res.Quiz = &out
	case ModeAnswer:
		k := req.TopK
		if k <= 0 {
			k = s.topK
		}
		out, err := processor.NewAnswerer(r, g).Answer(ctx, req.Question, k)
		if err != nil {
			return res, err
		}
		res.Answer = &out
	}
	return res, nil
}

// tracedRetriever reports retrieval timing to the request trace.
type tracedRetriever struct {
	inner domain.Retriever
	sink  metrics.Sink
}

func (t tracedRetriever) Query(ctx context.Context, q string, k int, opts domain.QueryOptions) (domain.ContextBundle, error) {
	start := time.Now()
	b, err := t.inner.Query(ctx, q, k, opts)
	t.sink.ObserveRetrieval(time.Since(start), len(b.Hits), err)
	return b, err
}

type tracedGenerator struct {
	inner domain.Generator
	sink  metrics.Sink
}

func (t tracedGenerator) Name() string { return t.inner.Name() }

func (t tracedGenerator) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	start := time.Now()
	out, err := t.inner.Generate(ctx, p)
	t.sink.ObserveGeneration(p.Task, time.Since(start), out.OutputTokens, err)
	return out, err
}
