package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"rag-engine/internal/audit"
	"rag-engine/internal/chunker"
	"rag-engine/internal/config"
	"rag-engine/internal/embedding"
	"rag-engine/internal/extract"
	"rag-engine/internal/llm"
	"rag-engine/internal/server"
	"rag-engine/internal/service"
	"rag-engine/internal/vectorstore"
	"rag-engine/internal/vectorstore/memory"
	"rag-engine/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/rag-engine/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Assemble components
	emb, err := embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("embeddings client init failed: %v", err)
	}

	gen, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("llm client init failed: %v", err)
	}

	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory", "":
		st = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:     cfg.VectorStore.Qdrant.URL,
			APIKey:  cfg.VectorStore.Qdrant.APIKey,
			Timeout: time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}, logger)
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	auditLog := audit.NewLogger(st, cfg.Collections.Audit, cfg.Embedder.Dimension, logger)

	svc := service.New(
		extract.NewFileExtractor(),
		chunker.NewSentenceChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		emb,
		gen,
		st,
		auditLog,
		service.Config{
			Collection:    cfg.Collections.Knowledge,
			Dimension:     cfg.Embedder.Dimension,
			HistoryWindow: cfg.Query.HistoryWindow,
		},
		logger,
	)

	srv := server.New(svc, st, server.Config{
		KnowledgeCollection: cfg.Collections.Knowledge,
		AuditCollection:     cfg.Collections.Audit,
		Dimension:           cfg.Embedder.Dimension,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	srv.Register(e)

	logger.Info("listening", "addr", cfg.Server.Addr)
	if err := e.Start(cfg.Server.Addr); err != nil {
		log.Fatal(err)
	}
}
