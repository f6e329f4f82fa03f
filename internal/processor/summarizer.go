// Package processor holds the downstream collaborators that turn retrieved
// context into summaries and quizzes.
package processor

import (
	"context"
	"fmt"
	"sort"

	"brainbolt/internal/domain"
)

const (
	SummaryTopK  = 15
	SummaryQuery = "comprehensive overview of the main content, key topics, and visual details"
)

// DefaultStyle is used for unknown summary styles.
const DefaultStyle = "concise"

var styles = map[string]string{
	"concise": "Create a brief, high-level abstract (approx. 3-5 sentences). " +
		"Focus ONLY on the 'big picture' core message. " +
		"Ignore minor details and examples.",
	"detailed": "Create a comprehensive, structured summary. " +
		"Use H3 headers (###) to separate key sections. " +
		"Include important details, examples, and nuance from the original text. " +
		"The length should be proportional to the depth of the source material.",
	"bullet_points": "Create a list of key takeaways. " +
		"Use bullet points for readability. " +
		"Ensure each bullet point is self-contained and impactful. " +
		"Group related points under bold headers if there are many topics.",
	"educational": "Explain the content as if teaching a student. " +
		"Define key terms clearly. " +
		"Break down complex ideas step by step. " +
		"Use examples only when they improve understanding. " +
		"Maintain a logical learning flow from basics to advanced concepts.",
	"exam_ready": "Summarize the content with an exam-focused mindset. " +
		"Highlight definitions, facts, formulas, and cause-effect relationships. " +
		"Emphasize points likely to be asked as direct or conceptual questions. " +
		"Avoid narrative explanations.",
	"executive": "Create a decision-oriented executive summary. " +
		"Focus on outcomes, implications, risks, and benefits. " +
		"Minimize background explanation unless it directly affects decisions. " +
		"Keep the tone authoritative and concise.",
	"technical_deep_dive": "Provide a technically precise summary. " +
		"Preserve domain-specific terminology. " +
		"Explain mechanisms, workflows, and constraints. " +
		"Avoid oversimplification.",
}

// Styles lists the supported summary styles.
func Styles() []string {
	out := make([]string, 0, len(styles))
	for k := range styles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Summary is a generated summary with the context it was built from.
type Summary struct {
	Style   string               `json:"style"`
	Text    string               `json:"summary"`
	Model   string               `json:"model"`
	Context domain.ContextBundle `json:"context"`
}

// Summarizer retrieves a broad overview context and asks the generator to
// summarize it in one of the supported styles.
type Summarizer struct {
	retriever domain.Retriever
	generator domain.Generator
}

func NewSummarizer(r domain.Retriever, g domain.Generator) *Summarizer {
	return &Summarizer{retriever: r, generator: g}
}

func (s *Summarizer) Summarize(ctx context.Context, style string) (Summary, error) {
	instructions, ok := styles[style]
	if !ok {
		style = DefaultStyle
		instructions = styles[DefaultStyle]
	}
	bundle, err := s.retriever.Query(ctx, SummaryQuery, SummaryTopK, domain.QueryOptions{})
	if err != nil {
		return Summary{}, err
	}
	if bundle.IsEmpty() {
		return Summary{}, domain.ErrNotIndexed
	}
	out, err := s.generator.Generate(ctx, domain.Prompt{
		Task:         "summarize",
		Instructions: summaryIntro(style, instructions),
		Context:      bundle,
		Closing:      "\n\nBased on the above retrieved context, generate the final summary now.",
	})
	if err != nil {
		return Summary{}, err
	}
	return Summary{Style: style, Text: out.Text, Model: out.Model, Context: bundle}, nil
}

func summaryIntro(style, instructions string) string {
	return fmt.Sprintf(`
You are BrainBolt's advanced AI summarization assistant.
You are processing fragments retrieved from a larger document (containing text and images).

Your task is to generate a **%s** summary.

GUIDELINES:
%s

GENERAL RULES:
- Synthesize information from both the text excerpts and the images provided below.
- Use professional yet accessible language.
- Format the output in clean Markdown.
- Do NOT start with phrases like "Here is the summary". Just dive straight into the content.
`, style, instructions)
}
