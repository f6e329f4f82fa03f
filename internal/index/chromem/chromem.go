// Package chromem adapts an in-memory chromem-go collection to the vector
// index contract.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"brainbolt/internal/domain"
	"brainbolt/internal/index"
)

const ordinalKey = "ordinal"

// Index keeps one private chromem collection per build.
type Index struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	count      int
}

func New() *Index { return &Index{db: chromem.NewDB()} }

func (x *Index) Build(ctx context.Context, fragments []domain.Fragment) error {
	if _, err := index.Dimension(fragments); err != nil {
		return err
	}
	name := "fragments-" + uuid.NewString()
	collection, err := x.db.CreateCollection(name, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	docs := make([]chromem.Document, len(fragments))
	for i, f := range fragments {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(f.Ordinal),
			Metadata:  map[string]string{ordinalKey: strconv.Itoa(f.Ordinal), "kind": f.Kind.String()},
			Embedding: f.Embedding,
			Content:   f.Label(),
		}
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dropLocked()
	x.collection = collection
	x.name = name
	x.count = len(docs)
	return nil
}

func (x *Index) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.collection == nil {
		return nil, errors.New("chromem index not built")
	}
	if x.count == 0 {
		return nil, nil
	}
	// chromem rejects n larger than the collection, so clamp first.
	results, err := x.collection.QueryEmbedding(ctx, vector, index.ClampK(topK, x.count), nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(results))
	for _, r := range results {
		ord, err := strconv.Atoi(r.Metadata[ordinalKey])
		if err != nil {
			return nil, fmt.Errorf("result %q has no ordinal: %w", r.ID, err)
		}
		hits = append(hits, domain.Hit{Ordinal: ord, Score: float64(r.Similarity)})
	}
	index.Rank(hits)
	return hits, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dropLocked()
	return nil
}

func (x *Index) dropLocked() {
	if x.collection == nil {
		return
	}
	_ = x.db.DeleteCollection(x.name)
	x.collection = nil
	x.name = ""
	x.count = 0
}
