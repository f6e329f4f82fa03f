package domain

import (
	"fmt"
	"strings"
)

// Kind tags the modality of a fragment.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fragment is one indexed unit of content: a text chunk or an image.
// Text fragments carry Text; image fragments carry ImageID and their raw
// payload lives in the fragment store.
type Fragment struct {
	Kind      Kind
	Text      string
	ImageID   string
	Page      int
	Ordinal   int
	Embedding []float32
}

// NewTextFragment builds a text fragment.
func NewTextFragment(text string, page int, embedding []float32) Fragment {
	return Fragment{Kind: KindText, Text: text, Page: page, Embedding: embedding}
}

// NewImageFragment builds an image fragment referencing a stored payload.
func NewImageFragment(imageID string, page int, embedding []float32) Fragment {
	return Fragment{Kind: KindImage, ImageID: imageID, Page: page, Embedding: embedding}
}

// Validate checks the union is well formed.
func (f Fragment) Validate() error {
	if len(f.Embedding) == 0 {
		return fmt.Errorf("fragment %d has no embedding", f.Ordinal)
	}
	switch f.Kind {
	case KindText:
		if f.ImageID != "" {
			return fmt.Errorf("text fragment %d carries image id %q", f.Ordinal, f.ImageID)
		}
	case KindImage:
		if f.ImageID == "" {
			return fmt.Errorf("image fragment %d has no image id", f.Ordinal)
		}
		if f.Text != "" {
			return fmt.Errorf("image fragment %d carries text", f.Ordinal)
		}
	default:
		return fmt.Errorf("fragment %d has unknown kind %v", f.Ordinal, f.Kind)
	}
	return nil
}

// Label is the human readable stand-in used by lexical indexing and the TUI.
func (f Fragment) Label() string {
	if f.Kind == KindImage {
		return "[Image: " + f.ImageID + "]"
	}
	return f.Text
}

// Chunk is a span of page text produced by a Chunker.
type Chunk struct {
	Text  string
	Page  int
	Index int
}

// TextPage is one page or segment of extracted text.
type TextPage struct {
	Text string `json:"text"`
	Page int    `json:"page"`
}

// ImageItem is one raw image with its provenance.
type ImageItem struct {
	Data []byte `json:"-"`
	Page int    `json:"page"`
	ID   string `json:"id"`
}

// Bag is the standardized output of every ingestion adapter.
type Bag struct {
	Source    string
	TextPages []TextPage
	Images    []ImageItem
}

// IsEmpty reports whether the bag has nothing worth ingesting.
func (b Bag) IsEmpty() bool {
	if len(b.Images) > 0 {
		return false
	}
	for _, p := range b.TextPages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// Validate checks the bag at the ingestion boundary and assigns missing
// image ids deterministically.
func (b *Bag) Validate() error {
	for i, p := range b.TextPages {
		if p.Page < 0 {
			return fmt.Errorf("%w: text page %d has negative page number", ErrInvalidBag, i)
		}
	}
	// Explicit ids are reserved first so generated ones never take them.
	seen := make(map[string]struct{}, len(b.Images))
	for i, img := range b.Images {
		if img.Page < 0 {
			return fmt.Errorf("%w: image %d has negative page number", ErrInvalidBag, i)
		}
		if img.ID == "" {
			continue
		}
		if _, dup := seen[img.ID]; dup {
			return fmt.Errorf("%w: duplicate image id %q", ErrInvalidBag, img.ID)
		}
		seen[img.ID] = struct{}{}
	}
	// Copy before assigning so the caller's backing array is left alone.
	images := make([]ImageItem, len(b.Images))
	copy(images, b.Images)
	for i := range images {
		if images[i].ID != "" {
			continue
		}
		id := fmt.Sprintf("img-%d-%d", images[i].Page, i)
		for n := 2; ; n++ {
			if _, taken := seen[id]; !taken {
				break
			}
			id = fmt.Sprintf("img-%d-%d-%d", images[i].Page, i, n)
		}
		images[i].ID = id
		seen[id] = struct{}{}
	}
	b.Images = images
	return nil
}

// IngestResult reports how many fragments of each modality were indexed.
type IngestResult struct {
	IndexedTextFragments  int `json:"indexed_text_fragments"`
	IndexedImageFragments int `json:"indexed_image_fragments"`
	Skipped               int `json:"skipped"`
}

// Total is the number of indexed fragments.
func (r IngestResult) Total() int { return r.IndexedTextFragments + r.IndexedImageFragments }

// Hit is a raw index match: the fragment ordinal and its similarity.
type Hit struct {
	Ordinal int
	Score   float64
}

// QueryOptions tunes context assembly.
type QueryOptions struct {
	// MaxImages caps forwarded image hits; 0 means no cap.
	MaxImages int
}

// TextExcerpt is a ranked text hit tagged with its page.
type TextExcerpt struct {
	Text  string  `json:"text"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// ImageRef is a ranked image hit. Data references the store's payload.
type ImageRef struct {
	ID    string  `json:"id"`
	Page  int     `json:"page"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
	Data  []byte  `json:"-"`
}

// RankedHit is one entry of the merged relevance order.
type RankedHit struct {
	Kind    Kind    `json:"kind"`
	Ordinal int     `json:"ordinal"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// ContextBundle is the ranked, modality-partitioned retrieval result.
type ContextBundle struct {
	Question string        `json:"question"`
	Texts    []TextExcerpt `json:"texts"`
	Images   []ImageRef    `json:"images"`
	Hits     []RankedHit   `json:"hits"`
}

// IsEmpty reports whether the bundle holds no context at all.
func (b ContextBundle) IsEmpty() bool { return len(b.Texts) == 0 && len(b.Images) == 0 }

// PartKind tags a prompt part.
type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

// Part is one element of a mixed text/image prompt.
type Part struct {
	Kind PartKind
	Text string
	Data []byte
	MIME string
}

// TextPart builds a text prompt part.
func TextPart(s string) Part { return Part{Kind: PartText, Text: s} }

// ImagePart builds a PNG image prompt part.
func ImagePart(data []byte) Part { return Part{Kind: PartImage, Data: data, MIME: "image/png"} }

// Prompt is what a Generator receives: instructions around a ranked context.
type Prompt struct {
	Task         string
	Instructions string
	Context      ContextBundle
	Closing      string
	// Items is the requested number of output items, e.g. quiz questions.
	Items int
	// JSON asks the backend for a JSON response when it supports it.
	JSON bool
}

// Completion is a generator's answer.
type Completion struct {
	Text         string
	Model        string
	OutputTokens int
}
