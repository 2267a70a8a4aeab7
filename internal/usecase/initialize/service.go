package initialize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotedex/internal/domain"
	"github.com/kailas-cloud/quotedex/internal/metrics"
)

// DefaultUpsertBatchSize bounds how many records one embed+upsert round trips.
const DefaultUpsertBatchSize = 100

// Service rebuilds the vector index from the corpus. Runs are serialized: a
// second caller fails fast instead of queueing behind a rebuild already in
// flight.
type Service struct {
	index     Repository
	corpus    Corpus
	embed     Embedder
	gate      *Gate
	batchSize int
	logger    *zap.Logger

	run sync.Mutex
}

// New creates an initialization service.
func New(index Repository, corpus Corpus, embed Embedder, gate *Gate, logger *zap.Logger) *Service {
	return &Service{
		index:     index,
		corpus:    corpus,
		embed:     embed,
		gate:      gate,
		batchSize: DefaultUpsertBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides how many records are embedded and upserted per round.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// Initialize embeds the corpus and fills the index. With data already
// indexed and forceRebuild false it is a no-op. Any failure mid-run clears
// the index again: a partial corpus would silently skew every ranking.
func (s *Service) Initialize(ctx context.Context, forceRebuild bool) (domain.InitReport, error) {
	if !s.run.TryLock() {
		return domain.InitReport{}, domain.ErrInitInProgress
	}
	defer s.run.Unlock()

	start := time.Now()

	count, err := s.index.Count(ctx)
	if err != nil {
		return domain.InitReport{}, fmt.Errorf("count indexed documents: %w", err)
	}
	if count > 0 && !forceRebuild {
		s.logger.Info("index already initialized", zap.Int("count", count))
		return domain.InitReport{
			Status:  domain.InitStatusExists,
			Message: fmt.Sprintf("Collection already initialized with %d documents", count),
			Count:   count,
			Elapsed: time.Since(start),
		}, nil
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	if err := s.index.Clear(ctx); err != nil {
		return domain.InitReport{}, fmt.Errorf("clear index: %w", err)
	}
	if err := s.index.EnsureIndex(ctx); err != nil {
		return domain.InitReport{}, fmt.Errorf("create index: %w", err)
	}

	records := s.corpus.Records()
	for offset := 0; offset < len(records); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.indexBatch(ctx, records[offset:end]); err != nil {
			s.cleanup()
			return domain.InitReport{}, err
		}
		s.logger.Debug("indexed batch",
			zap.Int("offset", offset),
			zap.Int("size", end-offset),
			zap.Int("total", len(records)),
		)
	}

	elapsed := time.Since(start)
	metrics.InitDuration.Observe(elapsed.Seconds())
	metrics.IndexedDocuments.Set(float64(len(records)))
	s.logger.Info("corpus indexed",
		zap.Int("count", len(records)),
		zap.Bool("rebuilt", count > 0),
		zap.Duration("elapsed", elapsed),
	)

	return domain.InitReport{
		Status:  domain.InitStatusCreated,
		Message: fmt.Sprintf("Successfully initialized collection with %d documents", len(records)),
		Count:   len(records),
		Rebuilt: count > 0,
		Elapsed: elapsed,
	}, nil
}

// indexBatch embeds one slice of records and writes it to the index. Errors
// name the record the batch starts at so an aborted run points at its cause.
func (s *Service) indexBatch(ctx context.Context, batch []domain.Record) error {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}

	res, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.NewRecordError(batch[0].ID,
			fmt.Errorf("%w: embed batch: %w", domain.ErrEmbeddingService, err))
	}
	if len(res.Embeddings) != len(batch) {
		return domain.NewRecordError(batch[0].ID,
			fmt.Errorf("%w: provider returned %d embeddings for %d records",
				domain.ErrEmbeddingService, len(res.Embeddings), len(batch)))
	}

	quotes := make([]domain.EmbeddedQuote, len(batch))
	for i, rec := range batch {
		quotes[i] = domain.EmbeddedQuote{Record: rec, Vector: res.Embeddings[i]}
	}
	if err := s.index.Upsert(ctx, quotes); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}

// cleanup drops whatever an aborted run managed to write. Runs on a fresh
// context so a canceled request still leaves the index empty rather than
// partially filled.
func (s *Service) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.index.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear index after aborted initialization", zap.Error(err))
		return
	}
	metrics.IndexedDocuments.Set(0)
}
