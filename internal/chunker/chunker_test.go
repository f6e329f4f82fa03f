package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestRecursiveChunker_SizeAndOverlap(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	chunks := c.Split(words(200), 7)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 300 {
			t.Fatalf("chunk %d has %d characters, want <= 300", i, n)
		}
		if ch.Page != 7 {
			t.Fatalf("chunk %d lost its page: got %d", i, ch.Page)
		}
		if ch.Index != i {
			t.Fatalf("chunk %d has index %d", i, ch.Index)
		}
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i].Text)[0]
		if !strings.Contains(chunks[i-1].Text, first) {
			t.Fatalf("chunk %d does not overlap previous chunk (first word %q)", i, first)
		}
	}
}

func TestRecursiveChunker_CoversAllWords(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	chunks := c.Split(words(120), 1)
	seen := map[string]bool{}
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			seen[w] = true
		}
	}
	if len(seen) != 120 {
		t.Fatalf("expected all 120 words to survive chunking, got %d", len(seen))
	}
}

func TestRecursiveChunker_PrefersParagraphs(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	text := "First paragraph is short.\n\nSecond paragraph is short too."
	chunks := c.Split(text, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short text, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "First") || !strings.Contains(chunks[0].Text, "Second") {
		t.Fatalf("unexpected chunk text %q", chunks[0].Text)
	}
}

func TestRecursiveChunker_LongUnbrokenText(t *testing.T) {
	c := NewRecursiveChunker(100, 10)
	chunks := c.Split(strings.Repeat("x", 450), 2)
	if len(chunks) < 5 {
		t.Fatalf("expected character-level splitting, got %d chunks", len(chunks))
	}
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch.Text) > 100 {
			t.Fatalf("chunk exceeds size: %d", utf8.RuneCountInString(ch.Text))
		}
	}
}

func TestRecursiveChunker_Deterministic(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	text := words(90) + "\n\n" + words(40)
	a := c.Split(text, 3)
	b := c.Split(text, 3)
	if len(a) != len(b) {
		t.Fatalf("chunk count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkers_BlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if got := NewRecursiveChunker(0, 0).Split(text, 1); len(got) != 0 {
			t.Fatalf("recursive: expected no chunks for %q, got %d", text, len(got))
		}
		if got := NewSentenceChunker(0, 0).Split(text, 1); len(got) != 0 {
			t.Fatalf("sentence: expected no chunks for %q, got %d", text, len(got))
		}
	}
}

func TestSentenceChunker_Overlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks := c.Split("One. Two. Three. Four", 5)
	want := []string{"One. Two.", "Two. Three.", "Three. Four"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Fatalf("chunk %d: got %q want %q", i, chunks[i].Text, w)
		}
		if chunks[i].Page != 5 {
			t.Fatalf("chunk %d: page %d", i, chunks[i].Page)
		}
	}
}
