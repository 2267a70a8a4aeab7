package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotedex/internal/domain"
	"github.com/kailas-cloud/quotedex/internal/metrics"
)

// Config carries the ranking parameters resolved from configuration.
type Config struct {
	Bounds    domain.Bounds
	Metric    string
	VectorDim int
}

// Service runs the ranking pipeline: embed the query, pull nearest neighbors
// from the index, convert distances to similarities, apply the threshold.
type Service struct {
	index   Index
	embed   Embedder
	gate    Gate
	bounds  domain.Bounds
	convert domain.SimilarityConverter
	dim     int
	logger  *zap.Logger
}

// New creates a search service. The distance-to-similarity conversion is
// fixed here from the configured metric so every query uses the same formula.
func New(index Index, embed Embedder, gate Gate, cfg Config, logger *zap.Logger) (*Service, error) {
	convert, err := domain.ConverterForMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &Service{
		index:   index,
		embed:   embed,
		gate:    gate,
		bounds:  cfg.Bounds,
		convert: convert,
		dim:     cfg.VectorDim,
		logger:  logger,
	}, nil
}

// Search answers one query. Candidates keep the order the index returned
// them in; an out-of-order response is an internal error, never re-sorted.
func (s *Service) Search(ctx context.Context, q domain.Query) (domain.ResultSet, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		return domain.ResultSet{}, fmt.Errorf("%w: query text is empty", domain.ErrInvalidQuery)
	}

	topK := s.bounds.ClampTopK(q.TopK)
	threshold := s.bounds.ClampThreshold(q.Threshold)

	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return domain.ResultSet{}, fmt.Errorf("%w: vectorize query: %w", domain.ErrEmbeddingService, err)
	}
	if s.dim > 0 && len(emb.Embedding) != s.dim {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return domain.ResultSet{}, fmt.Errorf("%w: provider returned %d dimensions, index expects %d",
			domain.ErrEmbeddingService, len(emb.Embedding), s.dim)
	}

	// The read lock holds rebuilds out, so a query never sees a half-built index.
	s.gate.RLock()
	candidates, err := s.index.Query(ctx, emb.Embedding, topK)
	s.gate.RUnlock()
	if err != nil {
		if errors.Is(err, domain.ErrIndexMissing) {
			// Nothing indexed yet answers every query with an empty set.
			metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
			metrics.SearchResultsReturned.Observe(0)
			return emptyResultSet(text, topK, threshold), nil
		}
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return domain.ResultSet{}, fmt.Errorf("query index: %w", err)
	}

	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Similarity = s.convert(c.Distance)
		if c.Similarity >= threshold {
			kept = append(kept, c)
		}
	}

	if err := verifyOrder(kept); err != nil {
		var ov *orderViolation
		if errors.As(err, &ov) {
			s.logger.Error("index returned candidates out of similarity order",
				zap.String("id", ov.prevID),
				zap.Float64("similarity", ov.prevSim),
				zap.String("next_id", ov.nextID),
				zap.Float64("next_similarity", ov.nextSim),
			)
		}
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return domain.ResultSet{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	metrics.SearchResultsReturned.Observe(float64(len(kept)))

	s.logger.Debug("search completed",
		zap.String("query", text),
		zap.Int("top_k", topK),
		zap.Float64("threshold", threshold),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(kept)),
	)

	return domain.ResultSet{
		Query:        text,
		Results:      kept,
		TotalResults: len(kept),
		TopK:         topK,
		Threshold:    threshold,
	}, nil
}

// verifyOrder checks that similarities never increase down the list.
func verifyOrder(results []domain.Candidate) error {
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			return fmt.Errorf("%w: %w", domain.ErrInternalConsistency, &orderViolation{
				prevID:  results[i-1].ID,
				prevSim: results[i-1].Similarity,
				nextID:  results[i].ID,
				nextSim: results[i].Similarity,
			})
		}
	}
	return nil
}

type orderViolation struct {
	prevID  string
	prevSim float64
	nextID  string
	nextSim float64
}

func (v *orderViolation) Error() string {
	return fmt.Sprintf("candidate %s (similarity %.6f) ranked after %s (similarity %.6f)",
		v.nextID, v.nextSim, v.prevID, v.prevSim)
}

func emptyResultSet(query string, topK int, threshold float64) domain.ResultSet {
	return domain.ResultSet{
		Query:     query,
		Results:   []domain.Candidate{},
		TopK:      topK,
		Threshold: threshold,
	}
}
