// Package service composes the ingestion and query pipelines. The service
// is a stateless coordinator: it owns no persistent state, holds only
// immutable references to its collaborators and is safe for concurrent use.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
)

const (
	defaultTopK          = 5
	defaultHistoryWindow = 6

	policyPrompt = "You answer questions using only the provided context. " +
		"If the context does not contain the answer, say that you do not have that information. " +
		"Politely refuse questions that are personal or outside the scope of the documents. " +
		"Never fabricate facts or sources."

	condensePrompt = "Rewrite the user's follow-up question as a single standalone question " +
		"that can be understood without the conversation above. " +
		"Keep the original language and intent. Reply with the rewritten question only."
)

type Config struct {
	// Collection is the knowledge collection name.
	Collection string
	// Dimension is the embedding/collection dimension D.
	Dimension int
	// HistoryWindow is the number of trailing chat turns used for
	// condensation and prompt assembly.
	HistoryWindow int
}

// Service runs the two pipelines against injected collaborators.
type Service struct {
	extractor domain.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	generator domain.Generator
	store     vectorstore.Storage
	audit     domain.AuditLogger

	collection    string
	dim           int
	historyWindow int
	logger        *slog.Logger
}

func New(extractor domain.Extractor, chunker domain.Chunker, embedder domain.Embedder,
	generator domain.Generator, store vectorstore.Storage, audit domain.AuditLogger,
	cfg Config, logger *slog.Logger) *Service {
	if cfg.Collection == "" {
		cfg.Collection = "docs"
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor:     extractor,
		chunker:       chunker,
		embedder:      embedder,
		generator:     generator,
		store:         store,
		audit:         audit,
		collection:    cfg.Collection,
		dim:           cfg.Dimension,
		historyWindow: cfg.HistoryWindow,
		logger:        logger,
	}
}

// PointID derives the deterministic id for one chunk of a source. The same
// (source, index) pair always maps to the same id, which makes upsert
// idempotent: re-ingesting an unchanged document overwrites in place.
func PointID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", sourceID, index))).String()
}

// LoadAndChunk is the first ingestion stage: extract raw text and split it
// into chunks. Zero chunks is a valid outcome, not an error.
func (s *Service) LoadAndChunk(ctx context.Context, req domain.IngestRequest) (domain.ChunkBatch, error) {
	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = req.PDFPath
	}
	if sourceID == "" {
		return domain.ChunkBatch{}, fmt.Errorf("ingest: source_id is required when raw_text is given")
	}

	text := req.RawText
	if text == "" && req.PDFPath != "" {
		extracted, err := s.extractor.Extract(ctx, req.PDFPath)
		if err != nil {
			return domain.ChunkBatch{}, fmt.Errorf("extract %s: %w", req.PDFPath, err)
		}
		text = extracted
	}
	return domain.ChunkBatch{SourceID: sourceID, Chunks: s.chunker.Chunk(text)}, nil
}

// EmbedAndUpsert is the second ingestion stage: one batch embedding call,
// deterministic ids, one upsert call.
func (s *Service) EmbedAndUpsert(ctx context.Context, batch domain.ChunkBatch) (domain.IngestResult, error) {
	if len(batch.Chunks) == 0 {
		// Short-circuit: the embedding client must never see an empty batch.
		s.logger.Info("no chunks to ingest", "source_id", batch.SourceID)
		return domain.IngestResult{Ingested: 0}, nil
	}

	vectors, err := s.embedder.Embed(ctx, batch.Chunks)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("embed %d chunks: %w", len(batch.Chunks), err)
	}
	if err := s.store.EnsureCollection(ctx, s.collection, s.dim); err != nil {
		return domain.IngestResult{}, err
	}

	points := make([]vectorstore.Point, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		points[i] = vectorstore.Point{
			ID:     PointID(batch.SourceID, i),
			Vector: vectors[i],
			Payload: map[string]any{
				vectorstore.FieldSource: batch.SourceID,
				vectorstore.FieldText:   chunk,
			},
		}
	}
	if err := s.store.Upsert(ctx, s.collection, points); err != nil {
		return domain.IngestResult{}, fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	s.logger.Info("ingested document", "source_id", batch.SourceID, "chunks", len(points))
	return domain.IngestResult{Ingested: len(points)}, nil
}

// Ingest runs the full ingestion pipeline: load → chunk → embed → upsert.
func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	batch, err := s.LoadAndChunk(ctx, req)
	if err != nil {
		return domain.IngestResult{}, err
	}
	return s.EmbedAndUpsert(ctx, batch)
}

// Query runs the query pipeline: condense → embed → filtered search →
// prompt assembly → generation → audit.
//
// An audit write failure after generation succeeded does not erase the
// answer: the computed result is returned together with an error wrapping
// domain.ErrAuditLog so the caller can report the failure out of band.
func (s *Service) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.QueryResult{}, fmt.Errorf("query: question is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	searchQuery, err := s.condense(ctx, question, req.History)
	if err != nil {
		return domain.QueryResult{}, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{searchQuery})
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("embed query: %w", err)
	}

	filterField, filterValue := "", ""
	if req.SourceID != "" {
		filterField, filterValue = vectorstore.FieldSource, req.SourceID
	}
	found, err := s.store.Search(ctx, s.collection, vectors[0], topK, filterField, filterValue)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("search: %w", err)
	}

	messages := s.assembleMessages(question, req.Persona, req.History, found.Contexts)
	answer, err := s.generator.Complete(ctx, messages)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("generate: %w", err)
	}

	result := domain.QueryResult{
		Answer:      answer,
		Sources:     found.Sources,
		NumContexts: len(found.Contexts),
		Answered:    len(found.Contexts) > 0,
	}

	if err := s.audit.Log(ctx, domain.InteractionRecord{
		Question: question,
		Answer:   answer,
		SourceID: req.SourceID,
		Sources:  found.Sources,
		History:  req.History,
		Answered: result.Answered,
	}); err != nil {
		s.logger.Error("audit write failed", "error", err)
		return result, fmt.Errorf("%w: %w", domain.ErrAuditLog, err)
	}
	return result, nil
}

// condense rewrites a follow-up question into a standalone one using the
// trailing window of history. With empty history the question passes
// through unchanged and no model call is made.
func (s *Service) condense(ctx context.Context, question string, history []domain.ChatTurn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	messages := make([]domain.ChatTurn, 0, s.historyWindow+2)
	messages = append(messages, domain.ChatTurn{Role: domain.RoleSystem, Content: condensePrompt})
	messages = append(messages, lastTurns(history, s.historyWindow)...)
	messages = append(messages, domain.ChatTurn{Role: domain.RoleUser, Content: question})

	standalone, err := s.generator.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	if standalone == "" {
		return question, nil
	}
	s.logger.Debug("condensed question", "original", question, "standalone", standalone)
	return standalone, nil
}

// assembleMessages builds the generation prompt: policy system prompt
// (optionally prefixed by a persona), the trailing history window in
// chronological order, then the user message embedding the retrieved
// context and the original, non-condensed question.
func (s *Service) assembleMessages(question, persona string, history []domain.ChatTurn, contexts []string) []domain.ChatTurn {
	system := policyPrompt
	if persona != "" {
		system = persona + "\n\n" + policyPrompt
	}

	var contextBlock strings.Builder
	for _, c := range contexts {
		contextBlock.WriteString("- ")
		contextBlock.WriteString(c)
		contextBlock.WriteString("\n\n")
	}
	user := fmt.Sprintf(
		"Use the following context to answer the question.\n\nContext:\n%s\nQuestion: %s\nAnswer concisely using the context above.",
		contextBlock.String(), question)

	messages := make([]domain.ChatTurn, 0, s.historyWindow+2)
	messages = append(messages, domain.ChatTurn{Role: domain.RoleSystem, Content: system})
	messages = append(messages, lastTurns(history, s.historyWindow)...)
	messages = append(messages, domain.ChatTurn{Role: domain.RoleUser, Content: user})
	return messages
}

func lastTurns(history []domain.ChatTurn, n int) []domain.ChatTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
