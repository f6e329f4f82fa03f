package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"brainbolt/internal/config"
	"brainbolt/internal/service"
)

func TestBuild_DefaultStackRunsOffline(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, idx := range []string{"flat", "chromem"} {
		cfg.Index.Type = idx
		a, err := build(context.Background(), cfg)
		if err != nil {
			t.Fatalf("%s: build: %v", idx, err)
		}
		src := filepath.Join(t.TempDir(), "notes.txt")
		if err := os.WriteFile(src, []byte("Enzymes lower activation energy. Substrates bind the active site."), 0o644); err != nil {
			t.Fatal(err)
		}
		res, err := a.svc.Process(context.Background(), service.Request{Sources: []string{src}, Mode: service.ModeAnswer, Question: "active site"})
		if err != nil {
			t.Fatalf("%s: process: %v", idx, err)
		}
		if res.Answer == nil || len(res.Answer.Context.Texts) == 0 {
			t.Fatalf("%s: expected retrieved context, got %+v", idx, res.Answer)
		}
		a.Close()
	}
}

func TestBuild_RejectsUnknownComponents(t *testing.T) {
	base, _ := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cases := map[string]func(c *config.AppConfig){
		"embedder":  func(c *config.AppConfig) { c.Embedder.Type = "word2vec" },
		"chunker":   func(c *config.AppConfig) { c.Chunker.Type = "paragraph" },
		"index":     func(c *config.AppConfig) { c.Index.Type = "faiss" },
		"generator": func(c *config.AppConfig) { c.Generator.Type = "llama" },
		"cache":     func(c *config.AppConfig) { c.Cache.Type = "disk" },
	}
	for name, mutate := range cases {
		cfg := *base
		mutate(&cfg)
		if _, err := build(context.Background(), &cfg); err == nil {
			t.Fatalf("%s: expected error for unknown type", name)
		}
	}
}

func TestBuild_RemoteGeneratorNeedsKey(t *testing.T) {
	cfg, _ := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg.Generator.Type = "openai"
	cfg.Generator.APIKeyEnv = "BRAINBOLT_TEST_MISSING_KEY"
	t.Setenv("BRAINBOLT_TEST_MISSING_KEY", "")
	if _, err := build(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing key error")
	}
}
