package search

import (
	"context"

	"github.com/kailas-cloud/quotedex/internal/domain"
)

// Index is the candidate source for one query vector.
type Index interface {
	Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Gate lets searches run concurrently while a rebuild holds them all out.
// Searches take the read side; the initializer takes the write side.
type Gate interface {
	RLock()
	RUnlock()
}
