package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"brainbolt/internal/domain"
)

type fakeRetriever struct {
	bundle domain.ContextBundle
	err    error
	lastK  int
}

func (f *fakeRetriever) Query(_ context.Context, q string, k int, _ domain.QueryOptions) (domain.ContextBundle, error) {
	f.lastK = k
	b := f.bundle
	b.Question = q
	return b, f.err
}

func typeQuery(m tea.Model, q string) tea.Model {
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func TestModel_RendersHitsInMergedOrder(t *testing.T) {
	r := &fakeRetriever{bundle: domain.ContextBundle{
		Texts:  []domain.TextExcerpt{{Text: "Chlorophyll absorbs light. Water is split.", Page: 2, Score: 0.7, Rank: 2}},
		Images: []domain.ImageRef{{ID: "leaf.png", Page: 3, Score: 0.9, Rank: 1, Data: make([]byte, 2048)}},
		Hits: []domain.RankedHit{
			{Kind: domain.KindImage, Page: 3, Score: 0.9, Rank: 1},
			{Kind: domain.KindText, Page: 2, Score: 0.7, Rank: 2},
		},
	}}
	m := typeQuery(New(r, 7, "2 pages"), "chlorophyll")
	got := m.(Model)
	if r.lastK != 7 {
		t.Fatalf("expected topK 7 to be forwarded, got %d", r.lastK)
	}
	if len(got.items) != 2 || got.items[0].image == nil {
		t.Fatalf("expected image first, got %+v", got.items)
	}
	if view := got.renderCurrent(); !strings.Contains(view, "leaf.png") || !strings.Contains(view, "page 3") {
		t.Fatalf("unexpected image view %q", view)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if view := m.(Model).renderCurrent(); !strings.Contains(view, "Chlorophyll") || !strings.Contains(view, "page 2") {
		t.Fatalf("unexpected text view %q", view)
	}
}

func TestModel_ShowsErrors(t *testing.T) {
	m := typeQuery(New(&fakeRetriever{err: domain.ErrNotIndexed}, 5, ""), "anything")
	got := m.(Model)
	if !strings.Contains(got.status, domain.ErrNotIndexed.Error()) || got.items != nil {
		t.Fatalf("unexpected state status=%q items=%v", got.status, got.items)
	}
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Rivers flow. Mitochondria make energy.", "mitochondria")
	if !strings.Contains(out, "Rivers flow.") || !strings.Contains(out, "Mitochondria make energy.") {
		t.Fatalf("sentences lost: %q", out)
	}
}
