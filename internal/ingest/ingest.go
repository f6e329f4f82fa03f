// Package ingest converts sources (files, web pages, raw text) into the
// standardized domain.Bag consumed by a session.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"brainbolt/internal/domain"
)

// ErrNoSources is returned when nothing could be resolved from the inputs.
var ErrNoSources = errors.New("no sources to ingest")

// Adapter loads one source.
type Adapter interface {
	Load(ctx context.Context, source string) (domain.Bag, error)
}

// Router picks an adapter per source: YouTube links, other http(s) URLs,
// image files, PDFs, other local files, and finally free text. Free text goes
// to Search when it is set and is ingested verbatim otherwise.
type Router struct {
	Text       Adapter
	PDF        Adapter
	Image      Adapter
	Web        Adapter
	Transcript Adapter
	Search     Adapter
	logger     *log.Logger
}

func NewRouter(web *Web, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	if web == nil {
		web = NewWeb(WebConfig{})
	}
	return &Router{
		Text:       TextFile{},
		PDF:        PDF{},
		Image:      ImageFile{},
		Web:        web,
		Transcript: NewTranscript(web, TranscriptConfig{}),
		logger:     logger,
	}
}

func (r *Router) Load(ctx context.Context, source string) (domain.Bag, error) {
	source = strings.TrimSpace(source)
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		if IsYouTubeURL(source) && r.Transcript != nil {
			return r.Transcript.Load(ctx, source)
		}
		return r.Web.Load(ctx, source)
	case isFile(source):
		switch {
		case IsImagePath(lower):
			return r.Image.Load(ctx, source)
		case strings.HasSuffix(lower, ".pdf"):
			return r.PDF.Load(ctx, source)
		default:
			return r.Text.Load(ctx, source)
		}
	case r.Search != nil:
		return r.Search.Load(ctx, source)
	default:
		r.logger.Printf("no adapter for %q; treating it as raw text", truncate(source, 40))
		return RawText(source), nil
	}
}

// LoadAll expands globs, loads every source and merges the bags in order.
// Sources that fail to load are logged and skipped.
func (r *Router) LoadAll(ctx context.Context, sources []string) (domain.Bag, error) {
	var merged domain.Bag
	used := map[string]bool{}
	loaded := 0
	for _, src := range expand(sources) {
		bag, err := r.Load(ctx, src)
		if err != nil {
			r.logger.Printf("warning: skipping %s: %v", src, err)
			continue
		}
		loaded++
		merged.TextPages = append(merged.TextPages, bag.TextPages...)
		for _, img := range bag.Images {
			if id := img.ID; id != "" {
				for n := 2; used[img.ID]; n++ {
					img.ID = fmt.Sprintf("%s#%d", id, n)
				}
				used[img.ID] = true
			}
			merged.Images = append(merged.Images, img)
		}
		if merged.Source == "" {
			merged.Source = bag.Source
		} else {
			merged.Source += ", " + bag.Source
		}
	}
	if loaded == 0 {
		return domain.Bag{}, ErrNoSources
	}
	return merged, nil
}

// RawText wraps a literal string as a single page of unknown number.
func RawText(text string) domain.Bag {
	return domain.Bag{Source: "text", TextPages: []domain.TextPage{{Text: text, Page: 0}}}
}

func expand(sources []string) []string {
	var out []string
	for _, p := range sources {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		out = append(out, matches...)
	}
	return out
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif"}

// IsImagePath reports whether path names a supported image file.
func IsImagePath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
