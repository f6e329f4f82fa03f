// Package embedding turns text spans and images into vectors of one shared,
// L2-normalized space. Backends produce raw vectors; Service applies the
// preprocessing that must be identical at ingest and query time.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"strings"
	"time"

	"brainbolt/internal/domain"
	"brainbolt/internal/metrics"
)

// DefaultMaxTokens matches the context window of CLIP text encoders.
const DefaultMaxTokens = 77

// Image is a canonicalized image: decoded pixels plus the PNG re-encoding
// that is stored and forwarded to generation backends.
type Image struct {
	Pixels image.Image
	PNG    []byte
}

// Backend is a raw embedding model. Vectors need not be normalized.
type Backend interface {
	Name() string
	Dimension() int
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, img Image) ([]float32, error)
}

// Config tunes the Service.
type Config struct {
	MaxTokens int
	Timeout   time.Duration
}

// Service implements domain.Embedder on top of a Backend.
type Service struct {
	backend   Backend
	maxTokens int
	timeout   time.Duration
	sink      metrics.Sink
	logger    *log.Logger
}

func NewService(backend Backend, cfg Config, sink metrics.Sink, logger *log.Logger) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[embedding] ", log.LstdFlags)
	}
	return &Service{
		backend:   backend,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		sink:      metrics.OrNop(sink),
		logger:    logger,
	}
}

func (s *Service) Name() string   { return s.backend.Name() }
func (s *Service) Dimension() int { return s.backend.Dimension() }

// EmbedText truncates the span to the model window and embeds it.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	span := Truncate(text, s.maxTokens)
	return s.embed(ctx, domain.KindText, snippet(span), func(ctx context.Context) ([]float32, error) {
		return s.backend.EmbedText(ctx, span)
	})
}

// EmbedImage canonicalizes the payload and embeds it. Undecodable payloads
// surface as *domain.EmbeddingError.
func (s *Service) EmbedImage(ctx context.Context, payload []byte) ([]float32, error) {
	img, err := Canonicalize(payload)
	if err != nil {
		return nil, &domain.EmbeddingError{Kind: domain.KindImage, Ref: fmt.Sprintf("%d bytes", len(payload)), Err: err}
	}
	return s.EmbedCanonical(ctx, img)
}

// EmbedCanonical embeds an already canonicalized image.
func (s *Service) EmbedCanonical(ctx context.Context, img Image) ([]float32, error) {
	return s.embed(ctx, domain.KindImage, fmt.Sprintf("%d bytes", len(img.PNG)), func(ctx context.Context) ([]float32, error) {
		return s.backend.EmbedImage(ctx, img)
	})
}

func (s *Service) embed(ctx context.Context, kind domain.Kind, ref string, call func(context.Context) ([]float32, error)) ([]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	vec, err := call(ctx)
	if err == nil {
		err = s.check(vec)
	}
	if err == nil && IsZero(vec) {
		err = domain.ErrDegenerateEmbedding
	}
	s.sink.ObserveEmbedding(kind, time.Since(start), err)
	if err != nil {
		var ee *domain.EmbeddingError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &domain.EmbeddingError{Kind: kind, Ref: ref, Err: err}
	}
	return Normalize(vec), nil
}

func (s *Service) check(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("empty embedding")
	}
	if dim := s.backend.Dimension(); dim > 0 && len(vec) != dim {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), dim)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return errors.New("non-finite embedding component")
		}
	}
	return nil
}

// Truncate keeps at most maxTokens whitespace-separated tokens and collapses
// runs of whitespace. It is the single truncation policy for ingest and query.
func Truncate(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if maxTokens > 0 && len(fields) > maxTokens {
		fields = fields[:maxTokens]
	}
	return strings.Join(fields, " ")
}

// Normalize scales v to unit L2 norm in place. Zero vectors are returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func snippet(s string) string {
	if len(s) <= 40 {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q", s[:40]+"...")
}
