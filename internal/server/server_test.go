package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
	"rag-engine/internal/vectorstore/memory"
)

type stubRAG struct {
	ingestRes domain.IngestResult
	ingestErr error
	queryRes  domain.QueryResult
	queryErr  error
	lastQuery domain.QueryRequest
}

func (s *stubRAG) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	return s.ingestRes, s.ingestErr
}

func (s *stubRAG) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	s.lastQuery = req
	return s.queryRes, s.queryErr
}

func newServer(t *testing.T, rag *stubRAG) (*echo.Echo, *memory.Storage) {
	t.Helper()
	store := memory.NewStorage()
	require.NoError(t, store.EnsureCollection(context.Background(), "docs", 2))
	srv := New(rag, store, Config{
		KnowledgeCollection: "docs",
		AuditCollection:     "audit_logs",
		Dimension:           2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := echo.New()
	srv.Register(e)
	return e, store
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIngest_Validation(t *testing.T) {
	e, _ := newServer(t, &stubRAG{})

	rec := do(e, http.MethodPost, "/ingest", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/ingest", `{"raw_text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "raw_text without source_id")
}

func TestIngest_OK(t *testing.T) {
	e, _ := newServer(t, &stubRAG{ingestRes: domain.IngestResult{Ingested: 3}})

	rec := do(e, http.MethodPost, "/ingest", `{"pdf_path":"A.pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res domain.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Ingested)
}

func TestQuery_OK(t *testing.T) {
	rag := &stubRAG{queryRes: domain.QueryResult{
		Answer: "yes", Sources: []string{"A.pdf"}, NumContexts: 2, Answered: true,
	}}
	e, _ := newServer(t, rag)

	rec := do(e, http.MethodPost, "/query", `{"question":"What is X?","top_k":5,"source_id":"A.pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A.pdf", rag.lastQuery.SourceID)
	assert.Equal(t, 5, rag.lastQuery.TopK)

	var res domain.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "yes", res.Answer)
	assert.True(t, res.Answered)
}

func TestQuery_MissingQuestion(t *testing.T) {
	e, _ := newServer(t, &stubRAG{})
	rec := do(e, http.MethodPost, "/query", `{"top_k":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_AuditFailureStillReturnsAnswer(t *testing.T) {
	rag := &stubRAG{
		queryRes: domain.QueryResult{Answer: "computed", NumContexts: 1, Answered: true},
		queryErr: fmt.Errorf("%w: qdrant down", domain.ErrAuditLog),
	}
	e, _ := newServer(t, rag)

	rec := do(e, http.MethodPost, "/query", `{"question":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code, "audit failure is a side channel, not part of the answer path")

	var res domain.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "computed", res.Answer)
}

func TestQuery_CriticalFailureReturnsNoAnswer(t *testing.T) {
	rag := &stubRAG{queryErr: errors.New("generation unavailable")}
	e, _ := newServer(t, rag)

	rec := do(e, http.MethodPost, "/query", `{"question":"q"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestClear_ResetsKnowledgeCollection(t *testing.T) {
	e, store := newServer(t, &stubRAG{})
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "1", Vector: []float64{1, 0}, Payload: map[string]any{"text": "t", "source": "A"}},
	}))

	rec := do(e, http.MethodPost, "/admin/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	n, err := store.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAudit_CountsAndRecords(t *testing.T) {
	e, store := newServer(t, &stubRAG{})
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, "audit_logs", 2))
	require.NoError(t, store.Upsert(ctx, "audit_logs", []vectorstore.Point{
		{ID: "1", Vector: []float64{0, 0}, Payload: map[string]any{"question": "q1", "answered": true}},
		{ID: "2", Vector: []float64{0, 0}, Payload: map[string]any{"question": "q2", "answered": false}},
	}))

	rec := do(e, http.MethodGet, "/admin/audit?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res auditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.AuditPoints)
	assert.Equal(t, 1, res.Unanswered)
	assert.Len(t, res.Interactions, 2)
}

func TestHealth(t *testing.T) {
	e, _ := newServer(t, &stubRAG{})
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
