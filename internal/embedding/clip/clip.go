// Package clip is a client for a CLIP inference service that embeds text and
// images into one space. The service exposes POST /embed/text and
// POST /embed/image; both answer {"embedding": [...]} or the OpenAI-style
// {"data": [{"embedding": [...]}]}.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"brainbolt/internal/embedding"
)

// Client is a CLIP service client implementing embedding.Backend.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// Config configures the CLIP service client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
// The API key is optional; self-hosted services usually run without one.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("clip base_url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "openai/clip-vit-base-patch32"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 512
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    key,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: t},
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "clip:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// EmbedText returns the text-tower embedding of text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.post(ctx, "/embed/text", map[string]any{"model": c.model, "input": text})
}

// EmbedImage returns the image-tower embedding of the canonical PNG.
func (c *Client) EmbedImage(ctx context.Context, img embedding.Image) ([]float32, error) {
	return c.post(ctx, "/embed/image", map[string]any{
		"model": c.model,
		"image": base64.StdEncoding.EncodeToString(img.PNG),
	})
}

func (c *Client) post(ctx context.Context, path string, body any) ([]float32, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("clip %s failed: %s", path, resp.Status)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
		Data      []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) > 0 {
		return out.Embedding, nil
	}
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return out.Data[0].Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}
