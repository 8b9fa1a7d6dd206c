package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/domain"
	"rag-engine/internal/vectorstore/memory"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog_WritesZeroVectorRecord(t *testing.T) {
	store := memory.NewStorage()
	l := NewLogger(store, "", 4, nopLogger())
	l.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	l.newID = func() string { return "fixed-id" }

	err := l.Log(context.Background(), domain.InteractionRecord{
		Question: "What is X?",
		Answer:   "X is Y.",
		SourceID: "A.pdf",
		Sources:  []string{"A.pdf"},
		History:  []domain.ChatTurn{{Role: domain.RoleUser, Content: "hi"}},
		Answered: true,
	})
	require.NoError(t, err)

	payloads, err := store.Scroll(context.Background(), DefaultCollection, 10)
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "2025-03-01T12:00:00Z", p["timestamp"])
	assert.Equal(t, "What is X?", p["question"])
	assert.Equal(t, "X is Y.", p["answer"])
	assert.Equal(t, "A.pdf", p["source_id"])
	assert.Equal(t, true, p["answered"])
}

func TestLog_AppendOnly(t *testing.T) {
	store := memory.NewStorage()
	l := NewLogger(store, "", 2, nopLogger())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Log(ctx, domain.InteractionRecord{Question: "q", Answer: "a"}))
	}

	n, err := store.Count(ctx, DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "every call must append a fresh record")
}
