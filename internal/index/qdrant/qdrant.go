package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"brainbolt/internal/domain"
	"brainbolt/internal/index"
)

// Index is a minimal REST client to Qdrant.
// Each build creates a fresh cosine collection; Close drops it.
type Index struct {
	url    string
	apiKey string
	prefix string
	client *http.Client

	mu         sync.RWMutex
	collection string
	count      int
}

type Config struct {
	URL              string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

func New(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "brainbolt"
	}
	return &Index{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		prefix: prefix,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Index) Build(ctx context.Context, fragments []domain.Fragment) error {
	dim, err := index.Dimension(fragments)
	if err != nil {
		return err
	}
	if dim == 0 {
		return errors.New("qdrant index needs at least one fragment")
	}
	name := fmt.Sprintf("%s-%s", s.prefix, uuid.NewString())
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, name), body, nil); err != nil {
		return err
	}
	points := make([]map[string]any, len(fragments))
	for i, f := range fragments {
		points[i] = map[string]any{
			"id":     f.Ordinal,
			"vector": f.Embedding,
			"payload": map[string]any{
				"kind": f.Kind.String(),
				"page": f.Page,
			},
		}
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, name), map[string]any{"points": points}, nil); err != nil {
		s.drop(name)
		return err
	}
	s.mu.Lock()
	old := s.collection
	s.collection = name
	s.count = len(fragments)
	s.mu.Unlock()
	if old != "" {
		s.drop(old)
	}
	return nil
}

func (s *Index) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	s.mu.RLock()
	name, count := s.collection, s.count
	s.mu.RUnlock()
	if name == "" {
		return nil, errors.New("qdrant index not built")
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        index.ClampK(topK, count),
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    uint64  `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, name), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.Hit{Ordinal: int(r.ID), Score: r.Score})
	}
	index.Rank(hits)
	return hits, nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close drops the collection. Best-effort: Qdrant being unreachable does not fail teardown.
func (s *Index) Close() error {
	s.mu.Lock()
	name := s.collection
	s.collection = ""
	s.count = 0
	s.mu.Unlock()
	if name != "" {
		s.drop(name)
	}
	return nil
}

func (s *Index) drop(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()
	_ = s.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, name), nil, nil)
}

func (s *Index) do(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
