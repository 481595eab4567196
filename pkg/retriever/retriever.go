package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

// DefaultK is the number of passages returned per query.
const DefaultK = 4

// Retriever answers a query with the most similar chunks of one session's
// index.
type Retriever struct {
	index    types.VectorIndex
	embedder types.Embedder
	k        int
}

// New binds an index to the embedder that produced its vectors. A
// non-positive k falls back to DefaultK.
func New(index types.VectorIndex, embedder types.Embedder, k int) (*Retriever, error) {
	if index == nil {
		return nil, errors.New("vector index is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{index: index, embedder: embedder, k: k}, nil
}

func (r *Retriever) K() int {
	return r.k
}

// Search returns up to k scored chunks, best first.
func (r *Retriever) Search(ctx context.Context, query string) ([]models.ScoredChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := r.index.Search(ctx, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return results, nil
}

// Retrieve returns the text of up to k chunks, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	results, err := r.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(results))
	for i, res := range results {
		passages[i] = res.Text
	}
	return passages, nil
}
