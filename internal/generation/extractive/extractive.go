// Package extractive is an offline generator. Summaries are the highest
// ranked context sentences; quizzes are cloze questions built from them.
package extractive

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"brainbolt/internal/domain"
	"brainbolt/internal/summarizer"
)

const (
	TaskSummarize = "summarize"
	TaskQuiz      = "quiz"
)

// Generator implements domain.Generator over the frequency summarizer.
type Generator struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Generator{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (g *Generator) Name() string { return "extractive" }

func (g *Generator) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	if err := ctx.Err(); err != nil {
		return domain.Completion{}, err
	}
	passages := make([]summarizer.Passage, 0, len(p.Context.Texts))
	for _, t := range p.Context.Texts {
		passages = append(passages, summarizer.Passage{Text: t.Text, Page: t.Page})
	}
	if len(passages) == 0 {
		return domain.Completion{}, fmt.Errorf("no text context to work from")
	}
	var text string
	var items int
	if p.Task == TaskQuiz {
		text, items = g.quiz(passages, p.Items)
	} else {
		text, items = g.summary(passages, p.Context.Images)
	}
	return domain.Completion{Text: text, Model: g.Name(), OutputTokens: items}, nil
}

func (g *Generator) summary(passages []summarizer.Passage, images []domain.ImageRef) (string, int) {
	a := g.summarizer.Analyze(passages, g.maxSentences)
	var b strings.Builder
	tokens := 0
	for _, s := range a.Sentences {
		fmt.Fprintf(&b, "- %s (page %d)\n", s.Text, s.Page)
		tokens += len(strings.Fields(s.Text))
	}
	if len(images) > 0 {
		pages := make([]string, len(images))
		for i, img := range images {
			pages[i] = fmt.Sprint(img.Page)
		}
		fmt.Fprintf(&b, "\nRelevant figures appear on page(s) %s.\n", strings.Join(pages, ", "))
	}
	return b.String(), tokens
}

type question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// quiz blanks out the strongest content word of each top sentence and uses
// other frequent words as distractors.
func (g *Generator) quiz(passages []summarizer.Passage, n int) (string, int) {
	if n <= 0 {
		n = 5
	}
	a := g.summarizer.Analyze(passages, n*2)
	weight := make(map[string]float64, len(a.Terms))
	var pool []string
	for _, t := range a.Terms {
		weight[t.Word] = t.Weight
		if len([]rune(t.Word)) >= 4 {
			pool = append(pool, t.Word)
		}
	}
	var out []question
	used := map[string]bool{}
	for _, s := range a.Sentences {
		if len(out) == n {
			break
		}
		answer := ""
		for _, w := range g.summarizer.ContentWords(s.Text) {
			if len([]rune(w)) < 4 || used[w] {
				continue
			}
			if answer == "" || weight[w] > weight[answer] {
				answer = w
			}
		}
		if answer == "" {
			continue
		}
		options := []string{answer}
		for _, w := range pool {
			if len(options) == 4 {
				break
			}
			if w != answer {
				options = append(options, w)
			}
		}
		if len(options) < 2 {
			continue
		}
		sort.Strings(options)
		used[answer] = true
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(answer) + `\b`)
		out = append(out, question{
			Question:      "Fill in the blank: " + re.ReplaceAllString(s.Text, "_____"),
			Options:       options,
			CorrectAnswer: answer,
			Explanation:   fmt.Sprintf("Page %d states: %s", s.Page, s.Text),
		})
	}
	data, _ := json.Marshal(map[string][]question{"quiz": out})
	return string(data), len(out)
}
