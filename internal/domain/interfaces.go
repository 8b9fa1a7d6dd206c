package domain

import "context"

// Extractor turns a document file into raw text. A zero-length result is a
// valid outcome, not an error; the ingestion pipeline short-circuits on it.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits raw text into bounded overlapping segments suitable for
// embedding. Implementations must be deterministic: identical input always
// yields the identical chunk sequence.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder maps a batch of texts to fixed-dimension vectors, one output per
// input in the same order. An empty batch fails with ErrEmptyInput without
// reaching the external model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Generator produces a single completion for an ordered message sequence.
type Generator interface {
	Complete(ctx context.Context, messages []ChatTurn) (string, error)
}

// AuditLogger appends one interaction record per call.
type AuditLogger interface {
	Log(ctx context.Context, rec InteractionRecord) error
}
