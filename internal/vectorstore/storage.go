// Package vectorstore defines the persistence contract shared by the
// Qdrant-backed and in-memory stores: named dimension-typed collections of
// (id, vector, payload) points with idempotent lifecycle operations and
// filtered nearest-neighbor search.
package vectorstore

import (
	"context"

	"rag-engine/internal/domain"
)

// Payload field keys written by the ingestion pipeline and read back when
// rendering search results.
const (
	FieldSource = "source"
	FieldText   = "text"
)

// Point is one stored (id, vector, payload) triple. Upserting a point whose
// id already exists overwrites it.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Storage persists points and answers similarity queries.
// Implementations must tolerate concurrent upserts to different ids and
// concurrent searches without blocking on writers.
type Storage interface {
	// EnsureCollection creates the collection if absent. It must not error
	// when the collection already exists with matching configuration.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// Upsert durably writes all points, overwriting points sharing an id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to topK nearest points by cosine similarity. When
	// filterField is non-empty only points whose payload field equals
	// filterValue are eligible; filtering happens at the index level, so the
	// result is topK-nearest-among-filtered, not nearest-then-filtered.
	Search(ctx context.Context, collection string, vector []float64, topK int, filterField, filterValue string) (domain.SearchResult, error)

	// Scroll lists up to limit payloads without similarity ranking. Used by
	// the audit surface.
	Scroll(ctx context.Context, collection string, limit int) ([]map[string]any, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Clear deletes the collection and immediately recreates it empty with
	// the same vector configuration. Destructive and unconfirmed.
	Clear(ctx context.Context, collection string, dim int) error
}

// CollectResults renders ranked payloads into the pipeline-facing result:
// contexts keep rank order, sources are deduplicated preserving first-seen
// order. Payloads missing expected fields degrade to empty values instead
// of failing the whole response.
func CollectResults(payloads []map[string]any) domain.SearchResult {
	res := domain.SearchResult{Contexts: []string{}, Sources: []string{}}
	seen := make(map[string]struct{})
	for _, p := range payloads {
		text, _ := p[FieldText].(string)
		if text == "" {
			continue
		}
		res.Contexts = append(res.Contexts, text)
		source, _ := p[FieldSource].(string)
		if source == "" {
			continue
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		res.Sources = append(res.Sources, source)
	}
	return res
}
