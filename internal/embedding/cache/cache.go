// Package cache memoizes backend embeddings by content hash. Embedding is a
// pure function of (model, modality, payload), so entries never carry
// session data.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"

	"brainbolt/internal/embedding"
)

// Store persists vectors by key.
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vec []float32) error
}

// Backend wraps an embedding.Backend with a Store. Store failures are logged
// and bypassed; they never fail an embedding.
type Backend struct {
	inner  embedding.Backend
	store  Store
	logger *log.Logger
}

func New(inner embedding.Backend, store Store, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.New(log.Writer(), "[embedding-cache] ", log.LstdFlags)
	}
	return &Backend{inner: inner, store: store, logger: logger}
}

func (b *Backend) Name() string   { return b.inner.Name() }
func (b *Backend) Dimension() int { return b.inner.Dimension() }

func (b *Backend) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return b.cached(ctx, Key(b.inner.Name(), "text", []byte(text)), func() ([]float32, error) {
		return b.inner.EmbedText(ctx, text)
	})
}

func (b *Backend) EmbedImage(ctx context.Context, img embedding.Image) ([]float32, error) {
	return b.cached(ctx, Key(b.inner.Name(), "image", img.PNG), func() ([]float32, error) {
		return b.inner.EmbedImage(ctx, img)
	})
}

func (b *Backend) cached(ctx context.Context, key string, compute func() ([]float32, error)) ([]float32, error) {
	if vec, ok, err := b.store.Get(ctx, key); err != nil {
		b.logger.Printf("cache get %s: %v", key[:12], err)
	} else if ok {
		return vec, nil
	}
	vec, err := compute()
	if err != nil {
		return nil, err
	}
	// store a copy: the caller normalizes the returned slice in place
	stored := append([]float32(nil), vec...)
	if err := b.store.Put(ctx, key, stored); err != nil {
		b.logger.Printf("cache put %s: %v", key[:12], err)
	}
	return vec, nil
}

// Key derives the content address of one embedding.
func Key(model, kind string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
