// Package store holds the fragments of one session in ingestion order along
// with the raw image payloads they reference.
package store

import (
	"fmt"
	"sync"

	"brainbolt/internal/domain"
)

// Store is the per-session fragment store. It is replaced wholesale on every
// ingest and never partially updated.
type Store struct {
	mu        sync.RWMutex
	fragments []domain.Fragment
	images    map[string][]byte
}

func New() *Store { return &Store{images: make(map[string][]byte)} }

// Replace swaps in a new fragment list and image map. Ordinals are rewritten
// to match positions so index hits resolve by slice offset.
func (s *Store) Replace(fragments []domain.Fragment, images map[string][]byte) error {
	for i := range fragments {
		fragments[i].Ordinal = i
		if err := fragments[i].Validate(); err != nil {
			return err
		}
		if fragments[i].Kind == domain.KindImage {
			if _, ok := images[fragments[i].ImageID]; !ok {
				return fmt.Errorf("image fragment %d references unknown payload %q", i, fragments[i].ImageID)
			}
		}
	}
	if images == nil {
		images = make(map[string][]byte)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = fragments
	s.images = images
	return nil
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = nil
	s.images = make(map[string][]byte)
}

// Fragment returns the fragment at ordinal.
func (s *Store) Fragment(ordinal int) (domain.Fragment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ordinal < 0 || ordinal >= len(s.fragments) {
		return domain.Fragment{}, false
	}
	return s.fragments[ordinal], true
}

// Fragments returns the fragments in ingestion order. The slice is shared and
// must not be modified.
func (s *Store) Fragments() []domain.Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fragments
}

// Image returns the stored payload for id without copying it.
func (s *Store) Image(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.images[id]
	return data, ok
}

// Drop removes an image payload. Fragments referencing it stay indexed and
// are skipped at query time.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fragments)
}

// Counts reports fragments per modality.
func (s *Store) Counts() (texts, images int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.fragments {
		if f.Kind == domain.KindImage {
			images++
		} else {
			texts++
		}
	}
	return texts, images
}
