package generation

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"brainbolt/internal/domain"
)

func sampleBundle() domain.ContextBundle {
	return domain.ContextBundle{
		Texts: []domain.TextExcerpt{
			{Text: "alpha", Page: 1, Rank: 1},
			{Text: "beta", Page: 2, Rank: 2},
			{Text: "gamma", Page: 4, Rank: 4},
		},
		Images: []domain.ImageRef{{ID: "fig", Page: 3, Rank: 3, Data: []byte{1, 2}}},
		Hits: []domain.RankedHit{
			{Kind: domain.KindText, Rank: 1},
			{Kind: domain.KindText, Rank: 2},
			{Kind: domain.KindImage, Rank: 3},
			{Kind: domain.KindText, Rank: 4},
		},
	}
}

func TestParts_InterleavesInRelevanceOrder(t *testing.T) {
	parts := Parts(domain.Prompt{Instructions: "intro", Context: sampleBundle(), Closing: "go"})
	if len(parts) != 6 {
		t.Fatalf("expected 6 parts, got %d: %+v", len(parts), parts)
	}
	if parts[0].Text != "intro" || parts[5].Text != "go" {
		t.Fatalf("instructions and closing misplaced")
	}
	if parts[1].Text != "\n[Text Page 1]: alpha\n\n[Text Page 2]: beta\n" {
		t.Fatalf("text excerpts not merged: %q", parts[1].Text)
	}
	if parts[2].Text != "\n[Image from Page 3]:\n" || parts[3].Kind != domain.PartImage || parts[3].MIME != "image/png" {
		t.Fatalf("image marker or payload misplaced: %+v %+v", parts[2], parts[3])
	}
	if !strings.Contains(parts[4].Text, "[Text Page 4]: gamma") {
		t.Fatalf("trailing text lost: %q", parts[4].Text)
	}
	if strings.Contains(Text(domain.Prompt{Context: sampleBundle()}), "\x01") {
		t.Fatalf("Text must not include image bytes")
	}
}

type fakeGen struct {
	out   domain.Completion
	err   error
	delay time.Duration
}

func (f fakeGen) Name() string { return "fake" }
func (f fakeGen) Generate(ctx context.Context, _ domain.Prompt) (domain.Completion, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.Completion{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.out, f.err
}

func TestService_WrapsErrors(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	cases := map[string]fakeGen{
		"backend error": {err: errors.New("quota")},
		"empty output":  {out: domain.Completion{Text: "  "}},
		"timeout":       {out: domain.Completion{Text: "late"}, delay: time.Second},
	}
	for name, g := range cases {
		svc := NewService(g, Config{Timeout: 20 * time.Millisecond}, nil, quiet)
		_, err := svc.Generate(context.Background(), domain.Prompt{Task: "summarize"})
		var ge *domain.GenerationError
		if !errors.As(err, &ge) || ge.Backend != "fake" {
			t.Fatalf("%s: expected GenerationError, got %v", name, err)
		}
	}
	svc := NewService(fakeGen{out: domain.Completion{Text: "ok"}}, Config{}, nil, quiet)
	if out, err := svc.Generate(context.Background(), domain.Prompt{}); err != nil || out.Text != "ok" {
		t.Fatalf("unexpected %v %v", out, err)
	}
}
