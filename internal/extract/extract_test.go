package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	e := NewFileExtractor()
	text, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewFileExtractor()
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewFileExtractor()
	_, err := e.Extract(ctx, "anything.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
