package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"brainbolt/internal/domain"
)

const (
	QuizTopK      = 10
	QuizQuery     = "important facts, key concepts, definitions, and details for examination"
	QuizMaxImages = 3
)

// Question is one multiple-choice quiz item.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Quiz is a generated set of questions.
type Quiz struct {
	Difficulty string               `json:"difficulty"`
	Questions  []Question           `json:"quiz"`
	Model      string               `json:"model"`
	Context    domain.ContextBundle `json:"-"`
}

// ErrMalformedQuiz is returned when the generator output is not a quiz.
var ErrMalformedQuiz = errors.New("generator returned a malformed quiz")

type QuizGenerator struct {
	retriever domain.Retriever
	generator domain.Generator
	maxImages int
}

// NewQuizGenerator creates a quiz generator. maxImages <= 0 uses QuizMaxImages.
func NewQuizGenerator(r domain.Retriever, g domain.Generator, maxImages int) *QuizGenerator {
	if maxImages <= 0 {
		maxImages = QuizMaxImages
	}
	return &QuizGenerator{retriever: r, generator: g, maxImages: maxImages}
}

func (q *QuizGenerator) Generate(ctx context.Context, n int, difficulty string) (Quiz, error) {
	if n <= 0 {
		n = 5
	}
	if difficulty == "" {
		difficulty = "Medium"
	}
	bundle, err := q.retriever.Query(ctx, QuizQuery, QuizTopK, domain.QueryOptions{MaxImages: q.maxImages})
	if err != nil {
		return Quiz{}, err
	}
	if bundle.IsEmpty() {
		return Quiz{}, domain.ErrNotIndexed
	}
	out, err := q.generator.Generate(ctx, domain.Prompt{
		Task:         "quiz",
		Instructions: quizIntro(n, difficulty),
		Context:      bundle,
		Closing:      "\n\nGenerate the quiz now.",
		Items:        n,
		JSON:         true,
	})
	if err != nil {
		return Quiz{}, err
	}
	questions, err := ParseQuiz(out.Text)
	if err != nil {
		return Quiz{}, err
	}
	if len(questions) > n {
		questions = questions[:n]
	}
	return Quiz{Difficulty: difficulty, Questions: questions, Model: out.Model, Context: bundle}, nil
}

// ParseQuiz accepts a bare JSON array or an object with a "quiz" key,
// optionally wrapped in a markdown code fence.
func ParseQuiz(raw string) ([]Question, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var questions []Question
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &questions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
		}
	} else {
		var wrapped struct {
			Quiz []Question `json:"quiz"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
		}
		questions = wrapped.Quiz
	}
	out := questions[:0]
	for _, q := range questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 2 {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable questions", ErrMalformedQuiz)
	}
	return out, nil
}

func quizIntro(n int, difficulty string) string {
	return fmt.Sprintf(`
You are an expert exam setter. Your task is to create %d %s level multiple-choice questions based ONLY on the provided context (text and images).

Return a JSON object of the form {"quiz": [{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer": "...", "explanation": "..."}]}.
Each question has exactly 4 options and correct_answer repeats the text of the correct option.

RULES:
- Ensure questions are derived directly from the content.
- If images are provided, try to include at least one question related to the visual information.
- Provide a clear explanation for the correct answer.
- Return PURE JSON.
`, n, difficulty)
}
