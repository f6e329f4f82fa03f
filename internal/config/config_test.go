package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chunker.ChunkSize != 300 || cfg.Chunker.ChunkOverlap != 50 || cfg.Index.Type != "flat" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Retrieval.LexicalFallback || cfg.Retrieval.QuizMaxImages != 3 {
		t.Fatalf("unexpected retrieval defaults %+v", cfg.Retrieval)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("index:\n  type: qdrant\ncache:\n  type: redis\nretrieval:\n  lexical_fallback: false\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Index.Qdrant == nil || cfg.Index.Qdrant.URL != "http://localhost:6333" {
		t.Fatalf("qdrant defaults not applied: %+v", cfg.Index.Qdrant)
	}
	if cfg.Cache.Redis == nil || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis defaults not applied: %+v", cfg.Cache.Redis)
	}
	if cfg.Retrieval.LexicalFallback {
		t.Fatalf("explicit false must win over the default")
	}
	if cfg.Embedder.Type != "hashing" || cfg.Server.MaxUploadMB != 10 {
		t.Fatalf("untouched sections lost defaults: %+v %+v", cfg.Embedder, cfg.Server)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Generator.Type = "gemini"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Generator.Type != "gemini" {
		t.Fatalf("generator type lost: %q", got.Generator.Type)
	}
}
