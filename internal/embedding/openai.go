// Package embedding maps batches of text to fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rag-engine/internal/domain"
)

// Config configures the embeddings client. APIKeyEnv names the environment
// variable holding the key; a missing key is a fatal configuration error.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// Client is an order-preserving batch embedder. There is no caching layer:
// every call re-embeds its input.
type Client struct {
	api       openai.Client
	model     string
	dimension int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-large"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", cfg.Dimension)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithRequestTimeout(cfg.Timeout),
		// Retry policy belongs to the invocation layer, not the core.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:       openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Dimension returns the configured vector dimension. It must equal the
// vector store's collection dimension.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one vector per input text, in input order. An empty batch
// fails with domain.ErrEmptyInput before any network call; callers are
// expected to short-circuit instead of hitting this.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, domain.ErrEmptyInput
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		i := int(item.Index)
		if i < 0 || i >= len(vectors) {
			return nil, fmt.Errorf("embeddings response: index %d out of range", i)
		}
		if len(item.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: got %d, collection expects %d",
				domain.ErrDimensionMismatch, len(item.Embedding), c.dimension)
		}
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
