package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"brainbolt/internal/domain"
)

func TestGenerate_SendsMultimodalContent(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"{\"quiz\":[]}"}}],"usage":{"completion_tokens":7}}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	c, err := New(Config{BaseURL: srv.URL + "/v1", APIKeyEnv: "TEST_OPENAI_KEY", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := c.Generate(context.Background(), domain.Prompt{
		Instructions: "make a quiz",
		JSON:         true,
		Context: domain.ContextBundle{
			Images: []domain.ImageRef{{Page: 1, Data: []byte("png")}},
			Hits:   []domain.RankedHit{{Kind: domain.KindImage}},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.OutputTokens != 7 || out.Model != "gpt-test" {
		t.Fatalf("unexpected completion %+v", out)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Fatalf("json mode not requested")
	}
	parts := got.Messages[0].Content
	if len(parts) != 3 || parts[2].ImageURL == nil || !strings.HasPrefix(parts[2].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("unexpected content parts %+v", parts)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Setenv("MISSING_KEY_FOR_TEST", "")
	if _, err := New(Config{APIKeyEnv: "MISSING_KEY_FOR_TEST"}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
