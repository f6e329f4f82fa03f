package cache

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"brainbolt/internal/embedding"
)

type countingBackend struct {
	calls int
}

func (c *countingBackend) Name() string   { return "counting" }
func (c *countingBackend) Dimension() int { return 2 }

func (c *countingBackend) EmbedText(context.Context, string) ([]float32, error) {
	c.calls++
	return []float32{3, 4}, nil
}

func (c *countingBackend) EmbedImage(context.Context, embedding.Image) ([]float32, error) {
	c.calls++
	return []float32{1, 0}, nil
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("down")
}
func (failingStore) Put(context.Context, string, []float32) error { return errors.New("down") }

func TestBackend_HitsCache(t *testing.T) {
	inner := &countingBackend{}
	b := New(inner, NewMemory(10), log.New(io.Discard, "", 0))
	ctx := context.Background()

	first, _ := b.EmbedText(ctx, "same")
	first[0] = 99 // callers normalize in place; the cache must not see it
	second, err := b.EmbedText(ctx, "same")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", inner.calls)
	}
	if second[0] != 3 {
		t.Fatalf("cached vector was mutated: %v", second)
	}
	if _, err := b.EmbedImage(ctx, embedding.Image{PNG: []byte("same")}); err != nil {
		t.Fatalf("embed image: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("text and image keys must differ, calls=%d", inner.calls)
	}
}

func TestBackend_StoreFailureIsBypassed(t *testing.T) {
	inner := &countingBackend{}
	b := New(inner, failingStore{}, log.New(io.Discard, "", 0))
	if _, err := b.EmbedText(context.Background(), "x"); err != nil {
		t.Fatalf("store failure must not fail embedding: %v", err)
	}
}

func TestMemory_Evicts(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()
	_ = m.Put(ctx, "a", []float32{1})
	_ = m.Put(ctx, "b", []float32{2})
	_ = m.Put(ctx, "c", []float32{3})
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("component %d: %v vs %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}
