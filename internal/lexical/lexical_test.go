package lexical

import (
	"testing"

	"brainbolt/internal/domain"
)

func TestSearch_FindsTextOnly(t *testing.T) {
	idx, err := Build([]domain.Fragment{
		{Kind: domain.KindText, Text: "The quick brown fox", Ordinal: 0},
		{Kind: domain.KindImage, ImageID: "fox", Ordinal: 1},
		{Kind: domain.KindText, Text: "A lazy dog sleeps", Ordinal: 2},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer idx.Close()
	if idx.Len() != 2 {
		t.Fatalf("expected 2 text docs, got %d", idx.Len())
	}
	hits, err := idx.Search("fox", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Ordinal != 0 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestSearch_NilIndex(t *testing.T) {
	var idx *Index
	hits, err := idx.Search("anything", 3)
	if err != nil || hits != nil {
		t.Fatalf("nil index must return nothing: %v %v", hits, err)
	}
}
