package types

import (
	"context"

	"github.com/xhad/docchat/internal/models"
)

// Core interfaces
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
}

type IndexBuilder interface {
	Build(ctx context.Context, sessionID string, chunks []models.Chunk, vectors [][]float32) (VectorIndex, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]string, error)
}

type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]models.Turn, error)
	Append(ctx context.Context, sessionID string, turn models.Turn) error
}
