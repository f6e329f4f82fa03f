package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIngest is returned when a bag has neither text nor images.
	ErrEmptyIngest = errors.New("nothing to ingest")
	// ErrNoContentIndexed is returned when every embedding attempt failed.
	ErrNoContentIndexed = errors.New("no content indexed")
	// ErrNotIndexed is returned by queries against a session without an index.
	ErrNotIndexed = errors.New("no data ingested yet")
	// ErrSessionClosed is returned by any call on a disposed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidBag is returned when a bag fails boundary validation.
	ErrInvalidBag = errors.New("invalid ingestion bag")
	// ErrDegenerateEmbedding is returned for all-zero vectors, which cannot be
	// normalized and match nothing.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
)

// EmbeddingError reports that a single fragment could not be embedded.
// It is recoverable: ingestion skips the fragment and continues.
type EmbeddingError struct {
	Kind Kind
	Ref  string
	Err  error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s %s: %v", e.Kind, e.Ref, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// RetrievalError reports an unexpected index search failure.
type RetrievalError struct {
	Backend string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval via %s failed: %v", e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a failed or timed-out generative call.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation via %s failed: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
