package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"rag-engine/internal/audit"
	"rag-engine/internal/chunker"
	"rag-engine/internal/config"
	"rag-engine/internal/domain"
	"rag-engine/internal/embedding"
	"rag-engine/internal/extract"
	"rag-engine/internal/llm"
	"rag-engine/internal/service"
	"rag-engine/internal/tui"
	"rag-engine/internal/vectorstore"
	"rag-engine/internal/vectorstore/memory"
	"rag-engine/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, sourceID string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&sourceID, "source", "", "Restrict answers to one document id")
	flag.Parse()
	inputs := flag.Args()

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

	// Keep stderr quiet while the TUI owns the terminal.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

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

	// Any files named on the command line are ingested before the chat opens.
	for _, path := range inputs {
		res, err := svc.Ingest(context.Background(), domain.IngestRequest{PDFPath: path})
		if err != nil {
			log.Fatalf("ingest %s failed: %v", path, err)
		}
		fmt.Printf("ingested %s (%d chunks)\n", path, res.Ingested)
	}

	m := tui.New(svc, sourceID, cfg.Query.TopK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
