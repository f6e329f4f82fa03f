package processor

import (
	"context"

	"brainbolt/internal/domain"
)

// Answer is a generated answer to a free-form question.
type Answer struct {
	Question string               `json:"question"`
	Text     string               `json:"answer"`
	Model    string               `json:"model"`
	Context  domain.ContextBundle `json:"context"`
}

// Answerer answers questions from the retrieved context only.
type Answerer struct {
	retriever domain.Retriever
	generator domain.Generator
}

func NewAnswerer(r domain.Retriever, g domain.Generator) *Answerer {
	return &Answerer{retriever: r, generator: g}
}

func (a *Answerer) Answer(ctx context.Context, question string, topK int) (Answer, error) {
	bundle, err := a.retriever.Query(ctx, question, topK, domain.QueryOptions{})
	if err != nil {
		return Answer{}, err
	}
	if bundle.IsEmpty() {
		return Answer{Question: question, Context: bundle}, nil
	}
	out, err := a.generator.Generate(ctx, domain.Prompt{
		Task:         "answer",
		Instructions: "Question: " + question + "\n\nRelevant context from the ingested material:\n",
		Context:      bundle,
		Closing:      "\n\nPlease answer the question based on the provided text and images.",
	})
	if err != nil {
		return Answer{}, err
	}
	return Answer{Question: question, Text: out.Text, Model: out.Model, Context: bundle}, nil
}
