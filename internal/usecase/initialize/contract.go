package initialize

import (
	"context"

	"github.com/kailas-cloud/quotedex/internal/domain"
)

// Repository is the index side of a rebuild.
type Repository interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, batch []domain.EmbeddedQuote) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Corpus supplies the records to embed, in load order.
type Corpus interface {
	Records() []domain.Record
}

// Embedder vectorizes record texts, one vector per input in input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
