// Package audit appends interaction records to the store's audit
// collection. Records are append-only: corrections are new records, there
// is no update or delete path.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore"
)

// DefaultCollection is the audit collection name.
const DefaultCollection = "audit_logs"

// Logger writes one point per interaction. The vector is a
// dimension-conformant zero vector: audit records are never
// similarity-searched, they exist for scroll access only.
type Logger struct {
	store      vectorstore.Storage
	collection string
	dim        int
	logger     *slog.Logger

	// overridable for tests
	now   func() time.Time
	newID func() string
}

func NewLogger(store vectorstore.Storage, collection string, dim int, logger *slog.Logger) *Logger {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		store:      store,
		collection: collection,
		dim:        dim,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Log appends one interaction record with a fresh unique id and the current
// timestamp. Write failures propagate; the calling pipeline stage decides
// whether they are fatal.
func (l *Logger) Log(ctx context.Context, rec domain.InteractionRecord) error {
	if err := l.store.EnsureCollection(ctx, l.collection, l.dim); err != nil {
		return fmt.Errorf("ensure audit collection: %w", err)
	}
	point := vectorstore.Point{
		ID:     l.newID(),
		Vector: make([]float64, l.dim),
		Payload: map[string]any{
			"timestamp":    l.now().UTC().Format(time.RFC3339),
			"question":     rec.Question,
			"answer":       rec.Answer,
			"source_id":    rec.SourceID,
			"sources":      rec.Sources,
			"chat_history": rec.History,
			"answered":     rec.Answered,
		},
	}
	if err := l.store.Upsert(ctx, l.collection, []vectorstore.Point{point}); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	l.logger.Debug("interaction audited", "id", point.ID, "source_id", rec.SourceID)
	return nil
}
