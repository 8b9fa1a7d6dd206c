package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/vectorstore"
)

// fakeQdrant emulates the subset of the Qdrant REST API the client uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]int
	searchBody  map[string]any
	deleted     []string
	created     []string
}

func (f *fakeQdrant) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet:
			// GET /collections/{name}
			name := r.URL.Path[len("/collections/"):]
			if _, ok := f.collections[name]; !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		case r.Method == http.MethodPut && r.URL.Query().Get("wait") == "":
			name := r.URL.Path[len("/collections/"):]
			var body struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.collections[name] = body.Vectors.Size
			f.created = append(f.created, name)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		case r.Method == http.MethodDelete:
			name := r.URL.Path[len("/collections/"):]
			delete(f.collections, name)
			f.deleted = append(f.deleted, name)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		case r.URL.Path == "/collections/docs/points/search":
			_ = json.NewDecoder(r.Body).Decode(&f.searchBody)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{"score": 0.9, "payload": map[string]any{"text": "ctx one", "source": "A.pdf"}},
					{"score": 0.8, "payload": map[string]any{"text": "ctx two", "source": "A.pdf"}},
				},
			})
		case r.URL.Path == "/collections/audit_logs/points/scroll":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points": []map[string]any{
						{"payload": map[string]any{"question": "q1"}},
					},
				},
			})
		case r.URL.Path == "/collections/docs/points/count":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"count": 7},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
		}
	}
}

func newFake(t *testing.T) (*fakeQdrant, *Storage) {
	t.Helper()
	f := &fakeQdrant{collections: map[string]int{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, NewStorage(Config{URL: srv.URL}, nil)
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	f, s := newFake(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "docs", 4))
	require.NoError(t, s.EnsureCollection(ctx, "docs", 4))

	assert.Equal(t, []string{"docs"}, f.created, "second ensure must not recreate")
	assert.Equal(t, 4, f.collections["docs"])
}

func TestSearch_FilterInsideRequestBody(t *testing.T) {
	f, s := newFake(t)

	res, err := s.Search(context.Background(), "docs", []float64{0.1, 0.2}, 5, "source", "A.pdf")
	require.NoError(t, err)

	filter, ok := f.searchBody["filter"].(map[string]any)
	require.True(t, ok, "filter must be part of the search request, not applied post-hoc")
	must := filter["must"].([]any)
	cond := must[0].(map[string]any)
	assert.Equal(t, "source", cond["key"])
	assert.Equal(t, "A.pdf", cond["match"].(map[string]any)["value"])
	assert.Equal(t, float64(5), f.searchBody["limit"])

	assert.Equal(t, []string{"ctx one", "ctx two"}, res.Contexts)
	assert.Equal(t, []string{"A.pdf"}, res.Sources, "sources deduplicated")
}

func TestSearch_NoFilterOmitsClause(t *testing.T) {
	f, s := newFake(t)

	_, err := s.Search(context.Background(), "docs", []float64{0.1}, 3, "", "")
	require.NoError(t, err)
	_, hasFilter := f.searchBody["filter"]
	assert.False(t, hasFilter)
}

func TestClear_DeletesAndRecreates(t *testing.T) {
	f, s := newFake(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "docs", 4))

	require.NoError(t, s.Clear(ctx, "docs", 4))

	assert.Equal(t, []string{"docs"}, f.deleted)
	assert.Equal(t, []string{"docs", "docs"}, f.created, "clear must recreate with the same config")
	assert.Equal(t, 4, f.collections["docs"])
}

func TestScrollAndCount(t *testing.T) {
	_, s := newFake(t)
	ctx := context.Background()

	payloads, err := s.Scroll(ctx, "audit_logs", 20)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "q1", payloads[0]["question"])

	n, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestUpsert_EmptyBatchIsNoop(t *testing.T) {
	_, s := newFake(t)
	assert.NoError(t, s.Upsert(context.Background(), "docs", nil))
}

func TestUpsert_SendsPoints(t *testing.T) {
	received := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []vectorstore.Point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- len(body.Points)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	t.Cleanup(srv.Close)

	s := NewStorage(Config{URL: srv.URL}, nil)
	points := []vectorstore.Point{
		{ID: "1", Vector: []float64{0.1}, Payload: map[string]any{"source": "A", "text": "t"}},
		{ID: "2", Vector: []float64{0.2}, Payload: map[string]any{"source": "A", "text": "u"}},
	}
	require.NoError(t, s.Upsert(context.Background(), "docs", points))
	assert.Equal(t, 2, <-received)
}
