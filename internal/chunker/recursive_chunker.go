package chunker

import (
	"strings"
	"unicode/utf8"

	"brainbolt/internal/domain"
)

const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on the coarsest separator that keeps pieces
// under the target size, then merges neighbouring pieces back up to the size
// with a fixed character overlap between consecutive chunks.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &RecursiveChunker{size: size, overlap: overlap, separators: defaultSeparators}
}

// Split returns the chunks of one page. Blank text yields no chunks.
func (c *RecursiveChunker) Split(text string, page int) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := c.split(text, c.separators)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, domain.Chunk{Text: p, Page: page, Index: len(chunks)})
	}
	return chunks
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = runes(text)
	} else {
		splits = strings.Split(text, sep)
	}

	var out, good []string
	for _, s := range splits {
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) < c.size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		} else {
			out = append(out, c.split(s, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good, sep)...)
	}
	return out
}

func (c *RecursiveChunker) merge(splits []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	sepIf := func(cond bool) int {
		if cond {
			return sepLen
		}
		return 0
	}
	var docs []string
	var current []string
	total := 0
	for _, d := range splits {
		l := utf8.RuneCountInString(d)
		if total+l+sepIf(len(current) > 0) > c.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				docs = append(docs, doc)
			}
			// keep a tail of at most overlap characters that still leaves room for d
			for total > c.overlap || (total+l+sepIf(len(current) > 0) > c.size && total > 0) {
				total -= utf8.RuneCountInString(current[0]) + sepIf(len(current) > 1)
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l + sepIf(len(current) > 1)
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runes(s string) []string {
	out := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
