// Package lexical keeps a BM25 index over the text fragments of a session.
// The retriever consults it only when the query has no usable embedding.
package lexical

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"

	"brainbolt/internal/domain"
	"brainbolt/internal/index"
)

type doc struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// Index is an in-memory bleve index keyed by fragment ordinal.
type Index struct {
	bleve bleve.Index
	size  int
}

// Build indexes every text fragment. Image fragments are skipped.
func Build(fragments []domain.Fragment) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	batch := idx.NewBatch()
	n := 0
	for _, f := range fragments {
		if f.Kind != domain.KindText {
			continue
		}
		if err := batch.Index(strconv.Itoa(f.Ordinal), doc{Text: f.Text, Page: f.Page}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index fragment %d: %w", f.Ordinal, err)
		}
		n++
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return &Index{bleve: idx, size: n}, nil
}

// Search runs a match query and returns hits ranked like the vector index:
// score descending, ordinal ascending.
func (x *Index) Search(q string, k int) ([]domain.Hit, error) {
	if x == nil || x.size == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = index.DefaultTopK
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		ord, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, domain.Hit{Ordinal: ord, Score: h.Score})
	}
	index.Rank(hits)
	return hits, nil
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return x.size
}

func (x *Index) Close() error {
	if x == nil || x.bleve == nil {
		return nil
	}
	return x.bleve.Close()
}
