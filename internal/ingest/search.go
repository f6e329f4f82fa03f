package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"brainbolt/internal/domain"
)

// DefaultSearchResults is how many result pages a search loads.
const DefaultSearchResults = 3

// ErrNoResults is returned when a search yields no loadable pages.
var ErrNoResults = errors.New("no search results")

type SearchConfig struct {
	// Endpoint is the DuckDuckGo HTML endpoint, overridable for tests.
	Endpoint string
	Results  int
}

// Search runs a web search for a free-text source and loads the top result
// pages through the web adapter, one page number per result.
type Search struct {
	web    *Web
	cfg    SearchConfig
	logger *log.Logger
}

func NewSearch(web *Web, cfg SearchConfig, logger *log.Logger) *Search {
	if web == nil {
		web = NewWeb(WebConfig{})
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://html.duckduckgo.com/html/"
	}
	if cfg.Results <= 0 {
		cfg.Results = DefaultSearchResults
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[search] ", log.LstdFlags)
	}
	return &Search{web: web, cfg: cfg, logger: logger}
}

func (s *Search) Load(ctx context.Context, query string) (domain.Bag, error) {
	links, err := s.Links(ctx, query)
	if err != nil {
		return domain.Bag{}, err
	}
	s.logger.Printf("found %d results for %q", len(links), truncate(query, 40))
	bag := domain.Bag{Source: "search: " + query}
	for _, link := range links {
		page, err := s.web.Load(ctx, link)
		if err != nil {
			s.logger.Printf("warning: skipping %s: %v", link, err)
			continue
		}
		for _, p := range page.TextPages {
			p.Page = len(bag.TextPages) + 1
			bag.TextPages = append(bag.TextPages, p)
		}
	}
	if len(bag.TextPages) == 0 {
		return domain.Bag{}, fmt.Errorf("%q: %w", query, ErrNoResults)
	}
	return bag, nil
}

// Links returns up to the configured number of result URLs for query.
func (s *Search) Links(ctx context.Context, query string) ([]string, error) {
	body, _, err := s.web.get(ctx, s.cfg.Endpoint+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	var links []string
	seen := map[string]bool{}
	for _, a := range dom.QuerySelectorAll(doc, "a.result__a") {
		link := resultTarget(dom.GetAttribute(a, "href"))
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if len(links) == s.cfg.Results {
			break
		}
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%q: %w", query, ErrNoResults)
	}
	return links, nil
}

// resultTarget unwraps DuckDuckGo's /l/?uddg= redirect links.
func resultTarget(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
