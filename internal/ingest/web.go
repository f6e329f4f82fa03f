package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"brainbolt/internal/domain"
)

type WebConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	// FetchImage downloads the article's lead image into the bag.
	FetchImage bool
}

// Web fetches a page over HTTP and extracts its readable article text.
type Web struct {
	client *http.Client
	cfg    WebConfig
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "brainbolt/1.0"
	}
	return &Web{client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

func (w *Web) Load(ctx context.Context, link string) (domain.Bag, error) {
	u, err := url.Parse(link)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("invalid url: %w", err)
	}
	body, _, err := w.get(ctx, link)
	if err != nil {
		return domain.Bag{}, err
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if title := strings.TrimSpace(article.Title); title != "" && text != "" {
		text = title + "\n\n" + text
	}
	bag := domain.Bag{Source: link, TextPages: []domain.TextPage{{Text: text, Page: 1}}}
	if w.cfg.FetchImage && article.Image != "" {
		if ref, err := u.Parse(article.Image); err == nil {
			if data, ctype, err := w.get(ctx, ref.String()); err == nil && strings.HasPrefix(ctype, "image/") {
				bag.Images = append(bag.Images, domain.ImageItem{Data: data, Page: 1, ID: "lead-image"})
			}
		}
	}
	return bag, nil
}

func (w *Web) get(ctx context.Context, link string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("GET %s: %s", link, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, w.cfg.MaxBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}
