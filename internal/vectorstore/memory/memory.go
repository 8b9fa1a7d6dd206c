// Package memory is a brute-force in-memory implementation of the storage
// contract, used in tests and for local runs without a Qdrant server.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
)

type collection struct {
	dim    int
	points map[string]vectorstore.Point
}

// Storage keeps named collections guarded by a RWMutex: concurrent upserts
// to different ids converge and searches never block each other.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

func (s *Storage) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &collection{dim: dim, points: make(map[string]vectorstore.Point)}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return fmt.Errorf("%w: vector has %d dims, collection %s expects %d",
				domain.ErrDimensionMismatch, len(p.Vector), name, c.dim)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, name string, vector []float64, topK int, filterField, filterValue string) (domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.SearchResult{}, fmt.Errorf("collection %s does not exist", name)
	}

	type scored struct {
		id      string
		score   float64
		payload map[string]any
	}
	// Eligibility is decided before ranking so the result is
	// topK-nearest-among-filtered.
	var candidates []scored
	for id, p := range c.points {
		if filterField != "" {
			v, _ := p.Payload[filterField].(string)
			if v != filterValue {
				continue
			}
		}
		candidates = append(candidates, scored{id: id, score: cosine(vector, p.Vector), payload: p.Payload})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}
	payloads := make([]map[string]any, 0, topK)
	for _, cand := range candidates[:topK] {
		payloads = append(payloads, cand.payload)
	}
	return vectorstore.CollectResults(payloads), nil
}

func (s *Storage) Scroll(ctx context.Context, name string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}
	ids := make([]string, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > len(ids) {
		limit = len(ids)
	}
	payloads := make([]map[string]any, 0, limit)
	for _, id := range ids[:limit] {
		payloads = append(payloads, c.points[id].Payload)
	}
	return payloads, nil
}

func (s *Storage) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", name)
	}
	return len(c.points), nil
}

func (s *Storage) Clear(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &collection{dim: dim, points: make(map[string]vectorstore.Point)}
	return nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
