package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"brainbolt/internal/chunker"
	"brainbolt/internal/config"
	"brainbolt/internal/domain"
	"brainbolt/internal/embedding"
	"brainbolt/internal/embedding/cache"
	"brainbolt/internal/embedding/clip"
	"brainbolt/internal/embedding/hashing"
	"brainbolt/internal/generation"
	"brainbolt/internal/generation/extractive"
	"brainbolt/internal/generation/gemini"
	"brainbolt/internal/generation/openai"
	"brainbolt/internal/index/chromem"
	"brainbolt/internal/index/flat"
	"brainbolt/internal/index/qdrant"
	"brainbolt/internal/ingest"
	"brainbolt/internal/metrics"
	"brainbolt/internal/service"
	"brainbolt/internal/session"
)

// app holds the assembled components of one process.
type app struct {
	cfg     *config.AppConfig
	prom    *metrics.Prometheus
	history *metrics.History
	manager *session.Manager
	svc     *service.Service
	topK    int
	closers []io.Closer
}

func (a *app) Close() {
	a.manager.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func newLogger(name string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "["+name+"] ", log.LstdFlags)
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}

func build(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{
		cfg:     cfg,
		prom:    metrics.NewPrometheus("brainbolt"),
		history: metrics.NewHistory(cfg.Server.HistorySize, newLogger("perf")),
		topK:    cfg.Retrieval.TopK,
	}

	backend, err := buildEmbedder(cfg, a)
	if err != nil {
		return nil, err
	}
	emb := embedding.NewService(backend, embedding.Config{
		MaxTokens: cfg.Embedder.MaxTokens,
		Timeout:   config.Seconds(cfg.Embedder.TimeoutSecs),
	}, a.prom, newLogger("embedding"))

	ch, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}
	newIndex, err := indexFactory(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := buildGenerator(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	sessLogger := newLogger("session")
	opts := session.Options{
		Workers:         cfg.Embedder.Workers,
		IndexBackend:    cfg.Index.Type,
		NewIndex:        newIndex,
		LexicalFallback: cfg.Retrieval.LexicalFallback,
		Sink:            a.prom,
		Logger:          sessLogger,
	}
	a.manager = session.NewManager(func(id string) *session.Session {
		return session.New(id, emb, ch, opts)
	}, time.Duration(cfg.Session.TTLMinutes)*time.Minute, sessLogger)

	router := buildRouter(cfg)
	a.svc = service.New(router, a.manager, gen, service.Options{
		TopK:          cfg.Retrieval.TopK,
		QuizMaxImages: cfg.Retrieval.QuizMaxImages,
		History:       a.history,
		Logger:        newLogger("service"),
	})
	return a, nil
}

func buildRouter(cfg *config.AppConfig) *ingest.Router {
	in := cfg.Ingest
	web := ingest.NewWeb(ingest.WebConfig{Timeout: config.Seconds(in.WebTimeoutSecs), FetchImage: in.FetchLeadImage})
	router := ingest.NewRouter(web, newLogger("ingest"))
	router.Transcript = ingest.NewTranscript(web, ingest.TranscriptConfig{Languages: in.TranscriptLanguages})
	if in.WebSearch {
		router.Search = ingest.NewSearch(web, ingest.SearchConfig{Results: in.SearchResults}, newLogger("search"))
	}
	return router
}

func buildEmbedder(cfg *config.AppConfig, a *app) (embedding.Backend, error) {
	var backend embedding.Backend
	switch cfg.Embedder.Type {
	case "hashing", "":
		backend = hashing.NewEmbedder(cfg.Embedder.Dimension)
	case "clip":
		c := cfg.Embedder.CLIP
		client, err := clip.NewClient(clip.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Dimension: c.Dimension,
			Timeout:   config.Seconds(cfg.Embedder.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("clip embedder init failed: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	switch cfg.Cache.Type {
	case "none", "":
		return backend, nil
	case "memory":
		return cache.New(backend, cache.NewMemory(cfg.Cache.Size), newLogger("cache")), nil
	case "redis":
		r := cfg.Cache.Redis
		store := cache.NewRedis(r.Addr, r.Password, r.DB, config.Seconds(r.TTLSecs))
		a.closers = append(a.closers, store)
		return cache.New(backend, store, newLogger("cache")), nil
	default:
		return nil, fmt.Errorf("unknown cache: %s", cfg.Cache.Type)
	}
}

func buildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

func indexFactory(cfg *config.AppConfig) (session.IndexFactory, error) {
	switch cfg.Index.Type {
	case "flat", "":
		return func() (domain.VectorIndex, error) { return flat.New(), nil }, nil
	case "chromem":
		return func() (domain.VectorIndex, error) { return chromem.New(), nil }, nil
	case "qdrant":
		q := cfg.Index.Qdrant
		qcfg := qdrant.Config{
			URL:              q.URL,
			APIKey:           q.APIKey,
			CollectionPrefix: q.CollectionPrefix,
			Timeout:          config.Seconds(q.TimeoutSecs),
		}
		return func() (domain.VectorIndex, error) { return qdrant.New(qcfg), nil }, nil
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Index.Type)
	}
}

func buildGenerator(ctx context.Context, cfg *config.AppConfig, a *app) (domain.Generator, error) {
	g := cfg.Generator
	var backend domain.Generator
	switch g.Type {
	case "extractive", "":
		backend = extractive.New(g.MaxSentences)
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{APIKeyEnv: g.APIKeyEnv, Model: g.Model, Temperature: g.Temperature})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		backend = client
	case "openai":
		client, err := openai.New(openai.Config{BaseURL: g.BaseURL, APIKeyEnv: g.APIKeyEnv, Model: g.Model, Temperature: g.Temperature})
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown generator: %s", g.Type)
	}
	return generation.NewService(backend, generation.Config{Timeout: config.Seconds(g.TimeoutSecs)}, a.prom, newLogger("generation")), nil
}
