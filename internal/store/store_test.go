package store

import (
	"testing"

	"brainbolt/internal/domain"
)

func TestReplace_AssignsOrdinalsAndCounts(t *testing.T) {
	s := New()
	frags := []domain.Fragment{
		domain.NewTextFragment("alpha", 1, []float32{1}),
		domain.NewImageFragment("img-1", 2, []float32{1}),
		domain.NewTextFragment("beta", 3, []float32{1}),
	}
	if err := s.Replace(frags, map[string][]byte{"img-1": {0x89}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	for i := 0; i < 3; i++ {
		f, ok := s.Fragment(i)
		if !ok || f.Ordinal != i {
			t.Fatalf("fragment %d: ok=%v ordinal=%d", i, ok, f.Ordinal)
		}
	}
	if texts, images := s.Counts(); texts != 2 || images != 1 {
		t.Fatalf("unexpected counts %d/%d", texts, images)
	}
	if _, ok := s.Fragment(3); ok {
		t.Fatalf("out of range ordinal must miss")
	}
}

func TestReplace_RejectsDanglingImage(t *testing.T) {
	s := New()
	err := s.Replace([]domain.Fragment{domain.NewImageFragment("ghost", 0, []float32{1})}, nil)
	if err == nil {
		t.Fatalf("expected error for image fragment without payload")
	}
}

func TestReset(t *testing.T) {
	s := New()
	_ = s.Replace([]domain.Fragment{domain.NewImageFragment("a", 0, []float32{1})}, map[string][]byte{"a": {1}})
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty store")
	}
	if _, ok := s.Image("a"); ok {
		t.Fatalf("images must be cleared on reset")
	}
}
