// Package flat is the exact brute-force vector index.
package flat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"brainbolt/internal/domain"
	"brainbolt/internal/index"
)

// Index scores every entry by dot product (vectors are L2-normalized, so
// this is cosine similarity).
type Index struct {
	mu        sync.RWMutex
	dimension int
	ordinals  []int
	vectors   [][]float32
	built     bool
}

func New() *Index { return &Index{} }

// Build replaces the index contents. It may be called once per ingest.
func (s *Index) Build(_ context.Context, fragments []domain.Fragment) error {
	dim, err := index.Dimension(fragments)
	if err != nil {
		return err
	}
	ordinals := make([]int, len(fragments))
	vectors := make([][]float32, len(fragments))
	for i, f := range fragments {
		ordinals[i] = f.Ordinal
		vectors[i] = f.Embedding
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	s.ordinals = ordinals
	s.vectors = vectors
	s.built = true
	return nil
}

func (s *Index) Search(_ context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.built {
		return nil, errors.New("flat index not built")
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", index.ErrDimensionMismatch, len(vector), s.dimension)
	}
	hits := make([]domain.Hit, len(s.vectors))
	for i := range s.vectors {
		hits[i] = domain.Hit{Ordinal: s.ordinals[i], Score: index.Dot(s.vectors[i], vector)}
	}
	index.Rank(hits)
	return hits[:index.ClampK(topK, len(hits))], nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.ordinals = nil
	s.built = false
	return nil
}
