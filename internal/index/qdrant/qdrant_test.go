package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"brainbolt/internal/domain"
)

type fakeQdrant struct {
	mu      sync.Mutex
	created []string
	deleted []string
	points  []struct {
		ID     int       `json:"id"`
		Vector []float32 `json:"vector"`
	}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPut && len(parts) == 2:
		f.created = append(f.created, parts[1])
	case r.Method == http.MethodPut && len(parts) == 3:
		var body struct {
			Points []struct {
				ID     int       `json:"id"`
				Vector []float32 `json:"vector"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points[:0], body.Points...)
	case r.Method == http.MethodPost:
		// Equal scores in reverse ordinal order; the client must re-rank.
		_, _ = w.Write([]byte(`{"result":[{"id":2,"score":0.5},{"id":0,"score":0.5},{"id":1,"score":0.9}]}`))
		return
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, parts[1])
	}
	_, _ = w.Write([]byte(`{"result":true}`))
}

func TestIndex_Lifecycle(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	idx := New(Config{URL: srv.URL, CollectionPrefix: "test"})
	ctx := context.Background()
	frags := []domain.Fragment{
		{Kind: domain.KindText, Text: "a", Ordinal: 0, Embedding: []float32{1, 0}},
		{Kind: domain.KindText, Text: "b", Ordinal: 1, Embedding: []float32{0, 1}},
		{Kind: domain.KindImage, ImageID: "x", Ordinal: 2, Embedding: []float32{1, 0}},
	}
	if err := idx.Build(ctx, frags); err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(fake.points) != 3 || fake.points[2].ID != 2 {
		t.Fatalf("unexpected upserted points %+v", fake.points)
	}
	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := []int{1, 0, 2}
	for i, h := range hits {
		if h.Ordinal != want[i] {
			t.Fatalf("rank %d: got %d, want %d", i, h.Ordinal, want[i])
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(fake.created) != 1 || len(fake.deleted) != 1 || fake.created[0] != fake.deleted[0] {
		t.Fatalf("collection not dropped: created=%v deleted=%v", fake.created, fake.deleted)
	}
	if !strings.HasPrefix(fake.created[0], "test-") {
		t.Fatalf("unexpected collection name %q", fake.created[0])
	}
}

func TestIndex_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	idx := New(Config{URL: srv.URL})
	err := idx.Build(context.Background(), []domain.Fragment{{Kind: domain.KindText, Text: "a", Embedding: []float32{1}}})
	if err == nil {
		t.Fatalf("expected build error")
	}
}
