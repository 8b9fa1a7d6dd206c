// Package qdrant is a minimal REST client to a Qdrant server. It assumes
// cosine distance for every collection it creates.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Storage talks to one Qdrant server; collection names are passed per call
// so the knowledge and audit collections share a single client.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

func NewStorage(cfg Config, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Storage{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	exists, err := s.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx, name, dim)
}

func (s *Storage) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, collection)
	if err := s.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), collection, err)
	}
	s.logger.Debug("upserted points", "collection", collection, "count", len(points))
	return nil
}

func (s *Storage) Search(ctx context.Context, collection string, vector []float64, topK int, filterField, filterValue string) (domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	// The filter rides inside the search request so Qdrant ranks among
	// filtered points only; filtering after ranking would change result
	// cardinality near the filter boundary.
	if filterField != "" {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": filterField, "match": map[string]any{"value": filterValue}},
			},
		}
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, collection)
	if err := s.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return domain.SearchResult{}, fmt.Errorf("search %s: %w", collection, err)
	}
	payloads := make([]map[string]any, 0, len(resp.Result))
	for _, r := range resp.Result {
		payloads = append(payloads, r.Payload)
	}
	return vectorstore.CollectResults(payloads), nil
}

func (s *Storage) Scroll(ctx context.Context, collection string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 20
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/scroll", s.url, collection)
	if err := s.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, fmt.Errorf("scroll %s: %w", collection, err)
	}
	payloads := make([]map[string]any, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		payloads = append(payloads, p.Payload)
	}
	return payloads, nil
}

func (s *Storage) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, collection)
	if err := s.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return resp.Result.Count, nil
}

// Clear drops the collection and recreates it empty with the same vector
// configuration. There is no confirmation and no way back.
func (s *Storage) Clear(ctx context.Context, collection string, dim int) error {
	url := fmt.Sprintf("%s/collections/%s", s.url, collection)
	if err := s.do(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	if err := s.createCollection(ctx, collection, dim); err != nil {
		return fmt.Errorf("recreate collection %s: %w", collection, err)
	}
	s.logger.Info("collection reset", "collection", collection)
	return nil
}

func (s *Storage) collectionExists(ctx context.Context, name string) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", s.url, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant GET %s failed: %s", url, resp.Status)
	}
}

func (s *Storage) createCollection(ctx context.Context, name string, dim int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", s.url, name)
	return s.do(ctx, http.MethodPut, url, body, nil)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.setHeaders(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Storage) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}
