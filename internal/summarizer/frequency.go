package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Passage is a span of source text with its page.
type Passage struct {
	Text string
	Page int
}

// Sentence is a ranked sentence. Position is its index in the passage order.
type Sentence struct {
	Text     string
	Page     int
	Score    float64
	Position int
}

// Term is a content word with its normalized corpus frequency.
type Term struct {
	Word   string
	Weight float64
}

// Analysis is the result of ranking a set of passages.
type Analysis struct {
	// Sentences holds the selected sentences in document order.
	Sentences []Sentence
	// Terms lists content words by descending weight, then alphabetically.
	Terms []Term
}

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns the top sentences of text joined in original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) string {
	a := s.Analyze([]Passage{{Text: text}}, maxSentences)
	if len(a.Sentences) == 0 {
		return strings.TrimSpace(text)
	}
	out := make([]string, len(a.Sentences))
	for i, sent := range a.Sentences {
		out[i] = sent.Text
	}
	return strings.Join(out, " ")
}

// Analyze splits passages into sentences, scores each by the normalized
// frequency of its content words and keeps the best maxSentences.
func (s *FrequencySummarizer) Analyze(passages []Passage, maxSentences int) Analysis {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	var sentences []Sentence
	for _, p := range passages {
		found := s.sentencePattern.FindAllString(p.Text, -1)
		if len(found) == 0 && strings.TrimSpace(p.Text) != "" {
			found = []string{p.Text}
		}
		for _, sent := range found {
			if t := strings.TrimSpace(sent); t != "" {
				sentences = append(sentences, Sentence{Text: t, Page: p.Page, Position: len(sentences)})
			}
		}
	}
	if len(sentences) == 0 {
		return Analysis{}
	}
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.contentTokens(sent.Text) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	for i := range sentences {
		score := 0.0
		toks := s.tokens(sentences[i].Text)
		for _, tok := range toks {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		sentences[i].Score = score
	}
	ranked := append([]Sentence(nil), sentences...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if maxSentences > len(ranked) {
		maxSentences = len(ranked)
	}
	selected := ranked[:maxSentences]
	// Keep original order among selected
	sort.Slice(selected, func(i, j int) bool { return selected[i].Position < selected[j].Position })

	terms := make([]Term, 0, len(freq))
	for w, v := range freq {
		terms = append(terms, Term{Word: w, Weight: v})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Word < terms[j].Word
	})
	return Analysis{Sentences: selected, Terms: terms}
}

// ContentWords returns the non-stopword tokens of text, lower-cased.
func (s *FrequencySummarizer) ContentWords(text string) []string {
	return s.contentTokens(text)
}

func (s *FrequencySummarizer) contentTokens(text string) []string {
	toks := s.tokens(text)
	out := toks[:0]
	for _, t := range toks {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *FrequencySummarizer) tokens(text string) []string {
	lower := strings.ToLower(text)
	return s.tokenPattern.FindAllString(lower, -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
