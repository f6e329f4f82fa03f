// Package gemini is the Google Gemini generation backend.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"brainbolt/internal/domain"
	"brainbolt/internal/generation"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKeyEnv   string
	Model       string
	Temperature float32
}

// Client generates with one Gemini model.
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

func (c *Client) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	// A model handle per call: response options differ between tasks.
	model := c.client.GenerativeModel(c.model)
	configure(model, c.temperature, p)
	resp, err := model.GenerateContent(ctx, toParts(generation.Parts(p))...)
	if err != nil {
		return domain.Completion{}, err
	}
	return completion(resp, c.model)
}

func configure(model *genai.GenerativeModel, temperature float32, p domain.Prompt) {
	model.SetTemperature(temperature)
	if p.JSON {
		model.ResponseMIMEType = "application/json"
	}
}

// completion joins the text parts of every candidate.
func completion(resp *genai.GenerateContentResponse, model string) (domain.Completion, error) {
	var texts []string
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					texts = append(texts, string(text))
				}
			}
		}
	}
	if len(texts) == 0 {
		return domain.Completion{}, errors.New("gemini returned no text")
	}
	out := domain.Completion{Text: strings.Join(texts, "\n"), Model: model}
	if resp.UsageMetadata != nil {
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func (c *Client) Close() error { return c.client.Close() }

func toParts(parts []domain.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case domain.PartImage:
			out = append(out, genai.ImageData(strings.TrimPrefix(p.MIME, "image/"), p.Data))
		default:
			out = append(out, genai.Text(p.Text))
		}
	}
	return out
}

// ListModels returns the models that support content generation.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				names = append(names, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
