package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"brainbolt/internal/chunker"
	"brainbolt/internal/domain"
	"brainbolt/internal/embedding"
	"brainbolt/internal/embedding/hashing"
	"brainbolt/internal/generation/extractive"
	"brainbolt/internal/metrics"
	"brainbolt/internal/session"
)

type staticLoader struct {
	bag domain.Bag
	err error
}

func (l staticLoader) LoadAll(context.Context, []string) (domain.Bag, error) { return l.bag, l.err }

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newService(loader Loader) *Service {
	svc := embedding.NewService(hashing.NewEmbedder(256), embedding.Config{}, nil, quiet())
	mgr := session.NewManager(func(id string) *session.Session {
		return session.New(id, svc, chunker.NewRecursiveChunker(300, 50), session.Options{Logger: quiet()})
	}, time.Minute, quiet())
	return New(loader, mgr, extractive.New(3), Options{History: metrics.NewHistory(10, nil), Logger: quiet()})
}

var notes = domain.Bag{Source: "notes", TextPages: []domain.TextPage{
	{Text: "Photosynthesis converts sunlight into chemical energy. Chlorophyll absorbs light in the chloroplasts.", Page: 1},
	{Text: "Cellular respiration releases energy from glucose. Mitochondria host the citric acid cycle.", Page: 2},
}}

func TestProcess_SummarizeThenQuizOnSameSession(t *testing.T) {
	s := newService(staticLoader{bag: notes})
	ctx := context.Background()
	res, err := s.Process(ctx, Request{Sources: []string{"notes.txt"}, Mode: ModeSummarize, SummaryType: "bullet_points"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if res.Summary == nil || !strings.Contains(res.Summary.Text, "(page") {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if res.Ingest.IndexedTextFragments != 2 || res.SessionID == "" {
		t.Fatalf("unexpected ingest %+v", res)
	}
	if res.Trace.Task != ModeSummarize || res.Trace.Error != "" {
		t.Fatalf("unexpected trace %+v", res.Trace)
	}

	quiz, err := s.Process(ctx, Request{SessionID: res.SessionID, Mode: ModeQuiz, NumQuestions: 2})
	if err != nil {
		t.Fatalf("quiz: %v", err)
	}
	if quiz.Quiz == nil || len(quiz.Quiz.Questions) == 0 {
		t.Fatalf("expected questions, got %+v", quiz.Quiz)
	}
	if quiz.Quiz.Difficulty != "Medium" {
		t.Fatalf("default difficulty not applied: %q", quiz.Quiz.Difficulty)
	}
	if n := len(s.History().Records()); n != 2 {
		t.Fatalf("expected 2 traces, got %d", n)
	}
}

func TestProcess_Errors(t *testing.T) {
	ctx := context.Background()
	s := newService(staticLoader{bag: notes})
	if _, err := s.Process(ctx, Request{Mode: "poem"}); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("expected ErrUnsupportedMode, got %v", err)
	}
	if _, err := s.Process(ctx, Request{SessionID: "missing"}); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	empty := newService(staticLoader{bag: domain.Bag{}})
	res, err := empty.Process(ctx, Request{Sources: []string{"x"}})
	if !errors.Is(err, domain.ErrEmptyIngest) {
		t.Fatalf("expected ErrEmptyIngest, got %v", err)
	}
	if res.Trace.Error == "" {
		t.Fatalf("failed request must be traced with its error")
	}
	latest, ok := empty.History().Latest()
	if !ok || latest.Error == "" {
		t.Fatalf("latest trace missing error: %+v", latest)
	}
}

func TestProcess_Answer(t *testing.T) {
	s := newService(staticLoader{bag: notes})
	res, err := s.Process(context.Background(), Request{Sources: []string{"n"}, Mode: ModeAnswer, Question: "where is the citric acid cycle?"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Answer == nil || res.Answer.Context.IsEmpty() {
		t.Fatalf("expected answer with context, got %+v", res.Answer)
	}
	if res.Answer.Context.Texts[0].Page != 2 {
		t.Fatalf("expected page 2 first, got %+v", res.Answer.Context.Texts[0])
	}
}
