package domain

import "context"

// Embedder maps text spans and images into one shared, L2-normalized vector space.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, payload []byte) ([]float32, error)
}

// Chunker splits the text of one page into overlapping spans.
type Chunker interface {
	Split(text string, page int) []Chunk
}

// VectorIndex is a bulk-built, read-only nearest-neighbour structure.
type VectorIndex interface {
	Build(ctx context.Context, fragments []Fragment) error
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	Len() int
	Close() error
}

// Generator is the opaque generative capability: ranked context plus
// instructions in, text out.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (Completion, error)
}

// Retriever is the query-side port consumed by the summarizer and quiz
// collaborators, the HTTP API and the TUI.
type Retriever interface {
	Query(ctx context.Context, question string, topK int, opts QueryOptions) (ContextBundle, error)
}
