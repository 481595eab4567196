package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

// MemoryIndex is an immutable in-process index searched by exact cosine
// similarity.
type MemoryIndex struct {
	chunks  []models.Chunk
	vectors [][]float32
	norms   []float64
	dim     int
}

// NewMemoryIndex pairs chunks[i] with vectors[i]. All vectors must share
// one dimension.
func NewMemoryIndex(chunks []models.Chunk, vectors [][]float32) (*MemoryIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", types.ErrLengthMismatch, len(chunks), len(vectors))
	}

	idx := &MemoryIndex{
		chunks:  append([]models.Chunk(nil), chunks...),
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if i == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), idx.dim)
		}
		idx.vectors[i] = append([]float32(nil), v...)
		idx.norms[i] = norm(v)
	}
	return idx, nil
}

func (m *MemoryIndex) Len() int {
	return len(m.chunks)
}

// Search returns the k chunks most similar to query, best first. Ties keep
// chunk order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), m.dim)
	}

	qn := norm(query)
	results := make([]models.ScoredChunk, len(m.chunks))
	for i, v := range m.vectors {
		results[i] = models.ScoredChunk{
			Chunk: m.chunks[i],
			Score: cosine(query, v, qn, m.norms[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results[:min(k, len(results))], nil
}

// MemoryBuilder builds a fresh MemoryIndex per session.
type MemoryBuilder struct{}

func (MemoryBuilder) Build(_ context.Context, _ string, chunks []models.Chunk, vectors [][]float32) (types.VectorIndex, error) {
	return NewMemoryIndex(chunks, vectors)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
