package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/quotedex/internal/db"
	"github.com/kailas-cloud/quotedex/internal/domain"
)

// store is the consumer interface for quote storage (ISP).
//
//nolint:interfacebloat // quote repo needs hash, index management and search operations
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config is the storage layout for one quote corpus.
type Config struct {
	KeyPrefix string // key namespace, e.g. "quotedex:"
	IndexName string // logical index name, e.g. "movie_quotes"
	VectorDim int
	Metric    db.DistanceMetric
	HNSW      HNSWConfig
}

// Repo persists embedded quotes as hashes and serves KNN lookups over them.
// It implements the index repository side of usecase/search and usecase/initialize.
type Repo struct {
	store store
	cfg   Config
}

// New creates a quote repository.
func New(s store, cfg Config) *Repo {
	if cfg.HNSW.M <= 0 {
		cfg.HNSW.M = 32
	}
	if cfg.HNSW.EFConstruct <= 0 {
		cfg.HNSW.EFConstruct = 400
	}
	if cfg.Metric == "" {
		cfg.Metric = db.DistanceCosine
	}
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndex creates the quote index if it does not exist yet.
// An index that is already there is left untouched.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := buildIndex(r.indexName(), r.quotePrefix(), r.cfg.VectorDim, r.cfg.Metric, r.cfg.HNSW)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}

	return nil
}

// IndexExists reports whether the quote index has been created.
func (r *Repo) IndexExists(ctx context.Context) (bool, error) {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", r.indexName(), err)
	}
	return exists, nil
}

// Upsert writes a batch of embedded quotes in one pipeline. Every vector is
// checked against the index dimensionality before anything is written.
func (r *Repo) Upsert(ctx context.Context, batch []domain.EmbeddedQuote) error {
	if len(batch) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(batch))
	for i := range batch {
		q := &batch[i]
		if len(q.Vector) != r.cfg.VectorDim {
			return domain.NewRecordError(q.ID, fmt.Errorf("%w: got %d, index expects %d",
				domain.ErrVectorDimMismatch, len(q.Vector), r.cfg.VectorDim))
		}
		items = append(items, db.HashSetItem{Key: r.quoteKey(q.ID), Fields: quoteToHash(q)})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset quotes: %w", err)
	}

	return nil
}

// Query returns the k nearest quotes to vector, closest first, carrying the
// raw engine distance. A missing index yields domain.ErrIndexMissing so the
// caller can treat an uninitialized corpus as empty rather than broken.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields(),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrIndexMissing
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	return parseCandidates(sr, r.quotePrefix()), nil
}

// Count returns the number of indexed quotes. A missing index counts as zero.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Clear drops the index and deletes every stored quote hash. Clearing an
// index that was never created is a no-op.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName(), err)
	}

	keys, err := r.store.Scan(ctx, r.quotePrefix()+"*")
	if err != nil {
		return fmt.Errorf("scan quotes: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del quotes: %w", err)
	}

	return nil
}

// Redis key patterns: {prefix}quote:{id}, {prefix}{index}:idx

func (r *Repo) quoteKey(id string) string {
	return r.quotePrefix() + id
}

func (r *Repo) quotePrefix() string {
	return fmt.Sprintf("%squote:", r.cfg.KeyPrefix)
}

func (r *Repo) indexName() string {
	return fmt.Sprintf("%s%s:idx", r.cfg.KeyPrefix, r.cfg.IndexName)
}
