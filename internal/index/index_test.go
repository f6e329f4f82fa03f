package index

import (
	"testing"

	"brainbolt/internal/domain"
)

func TestClampK(t *testing.T) {
	cases := []struct{ k, n, want int }{
		{0, 10, DefaultTopK},
		{-3, 10, DefaultTopK},
		{3, 10, 3},
		{20, 4, 4},
		{0, 2, 2},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := ClampK(c.k, c.n); got != c.want {
			t.Fatalf("ClampK(%d, %d) = %d, want %d", c.k, c.n, got, c.want)
		}
	}
}

func TestRank_TiesByOrdinal(t *testing.T) {
	hits := []domain.Hit{{Ordinal: 4, Score: 0.5}, {Ordinal: 1, Score: 0.9}, {Ordinal: 2, Score: 0.5}, {Ordinal: 0, Score: 0.5}}
	Rank(hits)
	want := []int{1, 0, 2, 4}
	for i, h := range hits {
		if h.Ordinal != want[i] {
			t.Fatalf("position %d: got ordinal %d, want %d", i, h.Ordinal, want[i])
		}
	}
}

func TestDimension(t *testing.T) {
	if _, err := Dimension([]domain.Fragment{{Embedding: []float32{1, 0}}, {Embedding: []float32{1}}}); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if d, err := Dimension(nil); err != nil || d != 0 {
		t.Fatalf("empty input: d=%d err=%v", d, err)
	}
}
