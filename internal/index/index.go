// Package index holds the ranking rules shared by every vector index backend.
// Backends may compute similarity however they like, but all of them report
// hits through Rank so that ordering is identical across implementations.
package index

import (
	"errors"
	"fmt"
	"sort"

	"brainbolt/internal/domain"
)

// DefaultTopK is used when a caller asks for k <= 0.
const DefaultTopK = 5

// ErrDimensionMismatch is returned when fragments or queries disagree on
// vector length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ClampK resolves the effective number of hits for a corpus of size n.
func ClampK(k, n int) int {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > n {
		k = n
	}
	return k
}

// Rank orders hits by descending score, breaking ties by ascending ordinal.
func Rank(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
}

// Dot is the similarity of two L2-normalized vectors.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Dimension validates a build input and returns its common dimension.
// An empty input has dimension 0.
func Dimension(fragments []domain.Fragment) (int, error) {
	dim := 0
	for i, f := range fragments {
		if len(f.Embedding) == 0 {
			return 0, fmt.Errorf("fragment %d has no embedding", i)
		}
		if dim == 0 {
			dim = len(f.Embedding)
			continue
		}
		if len(f.Embedding) != dim {
			return 0, fmt.Errorf("%w: fragment %d has %d, want %d", ErrDimensionMismatch, i, len(f.Embedding), dim)
		}
	}
	return dim, nil
}
