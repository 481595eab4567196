package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"

	"github.com/xhad/docchat/internal/types"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64
}

// Embedder turns text into fixed-dimension vectors.
type Embedder struct {
	Config   EmbedderConfig
	embedder embeddings.Embedder
	limiter  *rate.Limiter
}

func applyEmbedderDefaults(config *EmbedderConfig) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
}

// NewEmbedderWithConfig connects to the configured embedding provider.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	applyEmbedderDefaults(&config)

	client, err := NewEmbeddingClient(ProviderConfig{
		Provider:       config.Provider,
		BaseURL:        config.BaseURL,
		APIKey:         config.APIKey,
		Model:          config.Model,
		EmbeddingModel: config.Model,
	})
	if err != nil {
		return nil, err
	}

	return NewEmbedder(client, config)
}

// NewEmbedder wraps an existing embedding client.
func NewEmbedder(client embeddings.EmbedderClient, config EmbedderConfig) (*Embedder, error) {
	applyEmbedderDefaults(&config)

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Embedder{
		Config:   config,
		embedder: emb,
		limiter:  limiter,
	}, nil
}

// EmbedDocuments embeds texts in batches, one vector per text in input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.Config.BatchSize {
		end := min(start+e.Config.BatchSize, len(texts))

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch, err := e.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, &types.UpstreamError{Op: "embed", Err: err}
		}
		if len(batch) != end-start {
			return nil, &types.UpstreamError{
				Op:  "embed",
				Err: fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch)),
			}
		}
		vectors = append(vectors, batch...)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, &types.UpstreamError{
				Op:  "embed",
				Err: fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim),
			}
		}
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &types.UpstreamError{Op: "embed", Err: err}
	}
	if len(vector) == 0 {
		return nil, &types.UpstreamError{Op: "embed", Err: fmt.Errorf("empty query embedding")}
	}
	return vector, nil
}
