// Package server is the HTTP invocation layer: it validates typed requests
// at the boundary and hands them to the pipelines. Retry policy, if any,
// belongs to callers of this API, never to the core.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
)

// RAG is the server-facing subset of the orchestrator.
type RAG interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error)
	Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error)
}

type Config struct {
	KnowledgeCollection string
	AuditCollection     string
	Dimension           int
}

type Server struct {
	svc    RAG
	store  vectorstore.Storage
	cfg    Config
	logger *slog.Logger
}

func New(svc RAG, store vectorstore.Storage, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, store: store, cfg: cfg, logger: logger}
}

// Register mounts all routes on the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.POST("/ingest", s.Ingest)
	e.POST("/query", s.Query)
	e.POST("/admin/clear", s.Clear)
	e.GET("/admin/audit", s.Audit)
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Ingest(c echo.Context) error {
	var req domain.IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.PDFPath == "" && req.RawText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "one of pdf_path or raw_text is required")
	}
	if req.RawText != "" && req.SourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id is required with raw_text")
	}
	res, err := s.svc.Ingest(c.Request().Context(), req)
	if err != nil {
		s.logger.Error("ingestion failed", "source_id", req.SourceID, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "ingestion failed")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) Query(c echo.Context) error {
	var req domain.QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	res, err := s.svc.Query(c.Request().Context(), req)
	if err != nil {
		// Audit failure after a successful generation must not block the
		// answer; it is reported here and the result still goes out.
		if errors.Is(err, domain.ErrAuditLog) {
			s.logger.Error("audit write failed after generation", "error", err)
			return c.JSON(http.StatusOK, res)
		}
		s.logger.Error("query failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "query failed")
	}
	return c.JSON(http.StatusOK, res)
}

// Clear resets the knowledge collection. Destructive and unconfirmed.
func (s *Server) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.Clear(ctx, s.cfg.KnowledgeCollection, s.cfg.Dimension); err != nil {
		s.logger.Error("clear failed", "collection", s.cfg.KnowledgeCollection, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "clear failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

type auditResponse struct {
	KnowledgePoints int              `json:"knowledge_points"`
	AuditPoints     int              `json:"audit_points"`
	Unanswered      int              `json:"unanswered"`
	Interactions    []map[string]any `json:"interactions"`
}

// Audit is the monitoring surface: collection counts plus the most recent
// interaction records. Unanswered queries are counted from the structured
// answered field, never by scanning answer text.
func (s *Server) Audit(c echo.Context) error {
	ctx := c.Request().Context()
	limit := 20
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	resp := auditResponse{Interactions: []map[string]any{}}
	if n, err := s.store.Count(ctx, s.cfg.KnowledgeCollection); err == nil {
		resp.KnowledgePoints = n
	}
	if n, err := s.store.Count(ctx, s.cfg.AuditCollection); err == nil {
		resp.AuditPoints = n
	}

	payloads, err := s.store.Scroll(ctx, s.cfg.AuditCollection, limit)
	if err != nil {
		s.logger.Warn("audit scroll failed", "error", err)
		return c.JSON(http.StatusOK, resp)
	}
	for _, p := range payloads {
		if answered, ok := p["answered"].(bool); ok && !answered {
			resp.Unanswered++
		}
	}
	resp.Interactions = payloads
	return c.JSON(http.StatusOK, resp)
}
