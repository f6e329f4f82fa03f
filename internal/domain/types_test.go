package domain

import (
	"errors"
	"testing"
)

func TestBag_ValidateAssignsIDsAndRejectsDuplicates(t *testing.T) {
	b := Bag{Images: []ImageItem{{Data: []byte{1}, Page: 2}, {Data: []byte{2}, Page: 2, ID: "fig"}}}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if b.Images[0].ID != "img-2-0" {
		t.Fatalf("unexpected generated id %q", b.Images[0].ID)
	}

	dup := Bag{Images: []ImageItem{{ID: "a"}, {ID: "a"}}}
	if err := dup.Validate(); !errors.Is(err, ErrInvalidBag) {
		t.Fatalf("expected ErrInvalidBag for duplicate ids, got %v", err)
	}
	neg := Bag{TextPages: []TextPage{{Text: "x", Page: -1}}}
	if err := neg.Validate(); !errors.Is(err, ErrInvalidBag) {
		t.Fatalf("expected ErrInvalidBag for negative page, got %v", err)
	}
}

func TestBag_ValidateLeavesCallerImagesAlone(t *testing.T) {
	shared := []ImageItem{{Data: []byte{1}, Page: 1}}
	b := Bag{Images: shared}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if shared[0].ID != "" {
		t.Fatalf("caller slice mutated: %q", shared[0].ID)
	}
	if b.Images[0].ID == "" {
		t.Fatalf("validated bag must carry an id")
	}
}

func TestBag_ValidateGeneratedIDsAvoidExplicitOnes(t *testing.T) {
	b := Bag{Images: []ImageItem{{Page: 2}, {Page: 5, ID: "img-2-0"}}}
	if err := b.Validate(); err != nil {
		t.Fatalf("generated id must not collide with an explicit one: %v", err)
	}
	if b.Images[0].ID == "img-2-0" || b.Images[1].ID != "img-2-0" {
		t.Fatalf("unexpected ids %q %q", b.Images[0].ID, b.Images[1].ID)
	}
}

func TestBag_IsEmpty(t *testing.T) {
	if !(Bag{TextPages: []TextPage{{Text: " \n\t"}}}).IsEmpty() {
		t.Fatalf("whitespace-only bag must be empty")
	}
	if (Bag{Images: []ImageItem{{ID: "a"}}}).IsEmpty() {
		t.Fatalf("bag with an image is not empty")
	}
}

func TestFragment_Validate(t *testing.T) {
	ok := []Fragment{
		NewTextFragment("hello", 1, []float32{1}),
		NewImageFragment("img", 0, []float32{1}),
	}
	for _, f := range ok {
		if err := f.Validate(); err != nil {
			t.Fatalf("%v: unexpected error %v", f.Kind, err)
		}
	}
	bad := []Fragment{
		NewTextFragment("no vector", 1, nil),
		{Kind: KindText, Text: "t", ImageID: "x", Embedding: []float32{1}},
		{Kind: KindImage, Embedding: []float32{1}},
		{Kind: KindImage, ImageID: "i", Text: "t", Embedding: []float32{1}},
		{Kind: Kind(9), Embedding: []float32{1}},
	}
	for i, f := range bad {
		if err := f.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestContextBundle_IsEmpty(t *testing.T) {
	if !(ContextBundle{Question: "q"}).IsEmpty() {
		t.Fatalf("bundle without texts or images must be empty")
	}
	if (ContextBundle{Images: []ImageRef{{ID: "a"}}}).IsEmpty() {
		t.Fatalf("bundle with an image is not empty")
	}
}
