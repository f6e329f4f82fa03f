package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CLIPConfig holds connection details for a CLIP inference service.
type CLIPConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// EmbedderConfig selects and configures the multimodal embedder.
type EmbedderConfig struct {
	Type        string      `yaml:"type"`
	Dimension   int         `yaml:"dimension"`
	MaxTokens   int         `yaml:"max_tokens"`
	TimeoutSecs int         `yaml:"timeout_secs"`
	Workers     int         `yaml:"workers"`
	CLIP        *CLIPConfig `yaml:"clip,omitempty"`
}

// ChunkerConfig configures how page text is split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	URL              string `yaml:"url"`
	APIKey           string `yaml:"api_key"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// RetrievalConfig tunes the query path.
type RetrievalConfig struct {
	TopK            int  `yaml:"top_k"`
	LexicalFallback bool `yaml:"lexical_fallback"`
	QuizMaxImages   int  `yaml:"quiz_max_images"`
}

// GeneratorConfig selects and configures the generation backend.
type GeneratorConfig struct {
	Type         string  `yaml:"type"`
	Model        string  `yaml:"model"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	BaseURL      string  `yaml:"base_url"`
	Temperature  float32 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	MaxSentences int     `yaml:"max_sentences"`
}

// RedisConfig contains connection details for the Redis embedding cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// CacheConfig selects the embedding cache.
type CacheConfig struct {
	Type  string       `yaml:"type"`
	Size  int          `yaml:"size"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	HistorySize int    `yaml:"history_size"`
}

// IngestConfig configures source adapters.
type IngestConfig struct {
	// WebSearch sends free-text sources to a web search instead of ingesting
	// them verbatim.
	WebSearch           bool     `yaml:"web_search"`
	SearchResults       int      `yaml:"search_results"`
	FetchLeadImage      bool     `yaml:"fetch_lead_image"`
	TranscriptLanguages []string `yaml:"transcript_languages"`
	WebTimeoutSecs      int      `yaml:"web_timeout_secs"`
}

// SessionConfig configures session expiry for long-running processes.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	SweepSecs  int `yaml:"sweep_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Generator GeneratorConfig `yaml:"generator"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/brainbolt/config.yaml.
// If neither exists, it writes defaults to ~/.config/brainbolt/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "brainbolt", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "hashing", Dimension: 512, MaxTokens: 77, TimeoutSecs: 30, Workers: 4},
		Chunker:   ChunkerConfig{Type: "recursive", ChunkSize: 300, ChunkOverlap: 50},
		Index:     IndexConfig{Type: "flat"},
		Retrieval: RetrievalConfig{TopK: 5, LexicalFallback: true, QuizMaxImages: 3},
		Generator: GeneratorConfig{Type: "extractive", Temperature: 0.3, TimeoutSecs: 120, MaxSentences: 5},
		Cache:     CacheConfig{Type: "memory", Size: 10000},
		Server:    ServerConfig{Addr: ":8080", UploadDir: "uploads", MaxUploadMB: 10, HistorySize: 50},
		Session:   SessionConfig{TTLMinutes: 30, SweepSecs: 60},
		Ingest:    IngestConfig{SearchResults: 3, FetchLeadImage: true, TranscriptLanguages: []string{"en", "hi"}, WebTimeoutSecs: 20},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	d := defaultConfig()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = d.Embedder.Type
	}
	if cfg.Embedder.MaxTokens == 0 {
		cfg.Embedder.MaxTokens = d.Embedder.MaxTokens
	}
	if cfg.Embedder.Workers == 0 {
		cfg.Embedder.Workers = d.Embedder.Workers
	}
	if cfg.Embedder.Type == "clip" {
		if cfg.Embedder.CLIP == nil {
			cfg.Embedder.CLIP = &CLIPConfig{}
		}
		if cfg.Embedder.CLIP.BaseURL == "" {
			cfg.Embedder.CLIP.BaseURL = "http://localhost:8000"
		}
		if cfg.Embedder.CLIP.Model == "" {
			cfg.Embedder.CLIP.Model = "openai/clip-vit-base-patch32"
		}
		if cfg.Embedder.CLIP.Dimension == 0 {
			cfg.Embedder.CLIP.Dimension = 512
		}
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = d.Chunker.Type
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = d.Chunker.ChunkSize
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = d.Index.Type
	}
	if cfg.Index.Type == "qdrant" {
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.URL == "" {
			cfg.Index.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = d.Retrieval.TopK
	}
	if cfg.Retrieval.QuizMaxImages == 0 {
		cfg.Retrieval.QuizMaxImages = d.Retrieval.QuizMaxImages
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = d.Generator.Type
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = d.Generator.TimeoutSecs
	}
	if cfg.Cache.Type == "redis" {
		if cfg.Cache.Redis == nil {
			cfg.Cache.Redis = &RedisConfig{}
		}
		if cfg.Cache.Redis.Addr == "" {
			cfg.Cache.Redis.Addr = "localhost:6379"
		}
		if cfg.Cache.Redis.TTLSecs == 0 {
			cfg.Cache.Redis.TTLSecs = 7 * 24 * 3600
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = d.Server.UploadDir
	}
	if cfg.Ingest.SearchResults == 0 {
		cfg.Ingest.SearchResults = d.Ingest.SearchResults
	}
	if cfg.Ingest.WebTimeoutSecs == 0 {
		cfg.Ingest.WebTimeoutSecs = d.Ingest.WebTimeoutSecs
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = d.Session.TTLMinutes
	}
}

// Seconds converts a config seconds field into a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
