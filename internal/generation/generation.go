// Package generation renders prompts into mixed text/image parts and wraps
// generator backends with timeouts, metrics and typed errors.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"brainbolt/internal/domain"
	"brainbolt/internal/metrics"
)

// Parts lays out a prompt the way multimodal chat models consume it: the
// instructions, then the context in relevance order with page markers, then
// the closing line. Consecutive text excerpts are merged into one part.
func Parts(p domain.Prompt) []domain.Part {
	var parts []domain.Part
	if p.Instructions != "" {
		parts = append(parts, domain.TextPart(p.Instructions))
	}
	var pending strings.Builder
	flush := func() {
		if pending.Len() > 0 {
			parts = append(parts, domain.TextPart(pending.String()))
			pending.Reset()
		}
	}
	ti, ii := 0, 0
	for _, h := range p.Context.Hits {
		switch h.Kind {
		case domain.KindText:
			if ti >= len(p.Context.Texts) {
				continue
			}
			t := p.Context.Texts[ti]
			ti++
			fmt.Fprintf(&pending, "\n[Text Page %d]: %s\n", t.Page, t.Text)
		case domain.KindImage:
			if ii >= len(p.Context.Images) {
				continue
			}
			img := p.Context.Images[ii]
			ii++
			flush()
			parts = append(parts, domain.TextPart(fmt.Sprintf("\n[Image from Page %d]:\n", img.Page)), domain.ImagePart(img.Data))
		}
	}
	flush()
	if p.Closing != "" {
		parts = append(parts, domain.TextPart(p.Closing))
	}
	return parts
}

// Text concatenates the text parts of a prompt, dropping images.
func Text(p domain.Prompt) string {
	var b strings.Builder
	for _, part := range Parts(p) {
		if part.Kind == domain.PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

type Config struct {
	Timeout time.Duration
}

// Service decorates a backend. Every failure leaves as *domain.GenerationError.
type Service struct {
	backend domain.Generator
	timeout time.Duration
	sink    metrics.Sink
	logger  *log.Logger
}

func NewService(backend domain.Generator, cfg Config, sink metrics.Sink, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[generation] ", log.LstdFlags)
	}
	return &Service{backend: backend, timeout: cfg.Timeout, sink: metrics.OrNop(sink), logger: logger}
}

func (s *Service) Name() string { return s.backend.Name() }

func (s *Service) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.backend.Generate(ctx, p)
	if err == nil && strings.TrimSpace(out.Text) == "" {
		err = errors.New("empty completion")
	}
	d := time.Since(start)
	s.sink.ObserveGeneration(p.Task, d, out.OutputTokens, err)
	if err != nil {
		var ge *domain.GenerationError
		if !errors.As(err, &ge) {
			err = &domain.GenerationError{Backend: s.backend.Name(), Err: err}
		}
		s.logger.Printf("%s via %s failed after %s: %v", p.Task, s.backend.Name(), d.Round(time.Millisecond), err)
		return domain.Completion{}, err
	}
	s.logger.Printf("%s via %s: %d output tokens in %s", p.Task, out.Model, out.OutputTokens, d.Round(time.Millisecond))
	return out, nil
}
