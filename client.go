// Package quotedex embeds the quote retrieval pipeline in a Go process: the
// same corpus loading, vector index and ranking the HTTP API serves, without
// the HTTP layer.
package quotedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/quotedex/internal/db"
	dbRedis "github.com/kailas-cloud/quotedex/internal/db/redis"
	"github.com/kailas-cloud/quotedex/internal/domain"
	"github.com/kailas-cloud/quotedex/internal/metrics"
	corpusrepo "github.com/kailas-cloud/quotedex/internal/repository/corpus"
	"github.com/kailas-cloud/quotedex/internal/repository/embcache"
	quotesrepo "github.com/kailas-cloud/quotedex/internal/repository/quotes"
	openaiEmb "github.com/kailas-cloud/quotedex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/quotedex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/quotedex/internal/usecase/health"
	initializeuc "github.com/kailas-cloud/quotedex/internal/usecase/initialize"
	searchuc "github.com/kailas-cloud/quotedex/internal/usecase/search"
	statsuc "github.com/kailas-cloud/quotedex/internal/usecase/stats"
)

// Sentinels re-exported for errors.Is checks on client results.
var (
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrEmbeddingService       = domain.ErrEmbeddingService
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrIndexUnavailable       = domain.ErrIndexUnavailable
	ErrInitInProgress         = domain.ErrInitInProgress
	ErrDataSource             = domain.ErrDataSource
)

// Embedder vectorizes a single text. Implementations must produce vectors of
// the dimensionality the index is built with.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is an optional upgrade: providers with native batching
// implement it, everyone else gets per-text fallback calls.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries one vector and its token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries vectors in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// vectorizer is the full embedding contract the services consume.
type vectorizer interface {
	domain.Embedder
	domain.BatchEmbedder
}

// Client is the embedded quotedex entry point.
type Client struct {
	store     db.Store
	searchSvc *searchuc.Service
	initSvc   *initializeuc.Service
	statsSvc  *statsuc.Service
	healthSvc *healthuc.Service
	bounds    domain.Bounds
}

// New connects to the database, loads the quote corpus and wires the
// retrieval pipeline. The context bounds the database readiness wait.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("quotedex: database address required (use WithRedis)")
	}
	if cfg.embedder == nil && cfg.apiKey == "" {
		return nil, errors.New("quotedex: embedding credentials required (use WithOpenAI or WithEmbedder)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("quotedex: create store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("quotedex: database not ready: %w", err)
	}

	corpus, err := corpusrepo.Load(corpusrepo.Config{
		Path:         cfg.corpusPath,
		MaxRecords:   cfg.maxRecords,
		ChunkSize:    cfg.chunkSize,
		ChunkOverlap: cfg.chunkOverlap,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("quotedex: load corpus: %w", err)
	}

	embedder, checker := cfg.buildVectorizer(store)

	storeMetric := db.DistanceCosine
	if cfg.metric == domain.MetricL2 {
		storeMetric = db.DistanceL2
	}
	quotes := quotesrepo.New(store, quotesrepo.Config{
		KeyPrefix: cfg.keyPrefix,
		IndexName: cfg.indexName,
		VectorDim: cfg.dimensions,
		Metric:    storeMetric,
		HNSW: quotesrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		},
	})

	gate := &initializeuc.Gate{}
	searchSvc, err := searchuc.New(quotes, embedder, gate, searchuc.Config{
		Bounds:    cfg.bounds,
		Metric:    cfg.metric,
		VectorDim: cfg.dimensions,
	}, cfg.logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("quotedex: %w", err)
	}

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		initSvc:   initializeuc.New(quotes, corpus, embedder, gate, cfg.logger),
		statsSvc: statsuc.New(quotes, corpus, nil, statsuc.Config{
			IndexName:  cfg.indexName,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
		}),
		healthSvc: healthuc.New(store, quotes, checker),
		bounds:    cfg.bounds,
	}, nil
}

// buildVectorizer assembles the same decorator chain the server uses, minus
// budget tracking. The second return is the health probe target; nil when the
// configured embedder cannot be probed.
func (cfg *clientConfig) buildVectorizer(store db.Store) (vectorizer, healthuc.EmbeddingChecker) {
	if cfg.embedder != nil {
		a := &embedderAdapter{inner: cfg.embedder}
		if hc, ok := cfg.embedder.(healthuc.EmbeddingChecker); ok {
			return a, hc
		}
		return a, nil
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.baseURL,
		Model:      cfg.model,
		Dimensions: cfg.dimensions,
		Timeout:    cfg.embedTimeout,
		Provider:   "openai",
		Logger:     cfg.logger,
	})

	var chain vectorizer = base
	if cfg.cacheTTL > 0 {
		chain = embcache.New(base, store, embcache.Config{
			KeyPrefix: cfg.keyPrefix,
			Model:     cfg.model,
			TTL:       cfg.cacheTTL,
		}, metrics.EmbeddingCacheTotal, cfg.logger)
	}
	chain = embeddinguc.NewInstrumentedEmbedder(chain, "openai", cfg.model, nil, cfg.logger)
	return chain, base
}

// Close releases the database connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// InitReport describes the outcome of one initialization run.
type InitReport struct {
	Status  string
	Message string
	Count   int
	Rebuilt bool
	Elapsed time.Duration
}

// Initialize embeds the corpus and fills the index. With data already indexed
// and force false it is a no-op; force rebuilds from scratch.
func (c *Client) Initialize(ctx context.Context, force bool) (InitReport, error) {
	report, err := c.initSvc.Initialize(ctx, force)
	if err != nil {
		return InitReport{}, err
	}
	return InitReport(report), nil
}

// SearchOption overrides the configured ranking defaults for one query.
type SearchOption func(*searchParams)

type searchParams struct {
	topK      int
	threshold float64
}

// WithTopK sets the number of neighbors to retrieve. Out-of-range values are
// clamped to the configured bounds.
func WithTopK(k int) SearchOption {
	return func(p *searchParams) { p.topK = k }
}

// WithThreshold sets the minimum similarity kept, clamped to [0,1].
func WithThreshold(t float64) SearchOption {
	return func(p *searchParams) { p.threshold = t }
}

// Metadata carries quote attributes echoed back with each result.
type Metadata struct {
	Movie         string
	Year          int
	Type          string
	OriginalQuote string
	Character     string
	Themes        []string
	ChunkIndex    int
	TotalChunks   int
}

// Result is one ranked quote.
type Result struct {
	ID         string
	Document   string
	Metadata   Metadata
	Similarity float64
	Distance   float64
}

// ResultSet is the ordered answer for one query plus the parameters that were
// actually applied after clamping.
type ResultSet struct {
	Query        string
	Results      []Result
	TotalResults int
	TopK         int
	Threshold    float64
}

// Search embeds the query and returns quotes ranked by similarity, filtered
// by the threshold. Scores keep full precision here; rounding is an HTTP
// boundary concern.
func (c *Client) Search(ctx context.Context, text string, opts ...SearchOption) (ResultSet, error) {
	p := searchParams{
		topK:      c.bounds.DefaultTopK,
		threshold: c.bounds.DefaultThreshold,
	}
	for _, o := range opts {
		o(&p)
	}

	rs, err := c.searchSvc.Search(ctx, domain.Query{
		Text:      text,
		TopK:      p.topK,
		Threshold: p.threshold,
	})
	if err != nil {
		return ResultSet{}, err
	}
	return resultSetFromDomain(rs), nil
}

// BudgetStats mirrors token budget counters; remaining is -1 when unlimited.
type BudgetStats struct {
	DailyLimit       int64
	DailyUsed        int64
	DailyRemaining   int64
	MonthlyLimit     int64
	MonthlyUsed      int64
	MonthlyRemaining int64
}

// Stats is a point-in-time snapshot of the index and corpus.
type Stats struct {
	IndexName      string
	DocumentCount  int
	CorpusRecords  int
	EmbeddingModel string
	Dimensions     int
	Budget         BudgetStats
}

// Stats reports the index state, corpus size and model parameters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	r, err := c.statsSvc.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		IndexName:      r.IndexName,
		DocumentCount:  r.DocumentCount,
		CorpusRecords:  r.CorpusRecords,
		EmbeddingModel: r.Model,
		Dimensions:     r.Dimensions,
		Budget: BudgetStats{
			DailyLimit:       r.Budget.DailyLimit,
			DailyUsed:        r.Budget.DailyUsed,
			DailyRemaining:   r.Budget.RemainingDaily,
			MonthlyLimit:     r.Budget.MonthlyLimit,
			MonthlyUsed:      r.Budget.MonthlyUsed,
			MonthlyRemaining: r.Budget.RemainingMonthly,
		},
	}, nil
}

// HealthReport aggregates component health checks.
type HealthReport struct {
	Status          string
	Checks          map[string]string
	DocumentsLoaded int
	Initialized     bool
}

// Health checks the database and, when probeable, the embedding provider.
func (c *Client) Health(ctx context.Context) HealthReport {
	r := c.healthSvc.Check(ctx)

	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return HealthReport{
		Status:          string(r.Status),
		Checks:          checks,
		DocumentsLoaded: r.DocumentsLoaded,
		Initialized:     r.Initialized,
	}
}

func resultSetFromDomain(rs domain.ResultSet) ResultSet {
	results := make([]Result, len(rs.Results))
	for i, c := range rs.Results {
		results[i] = Result{
			ID:         c.ID,
			Document:   c.Document,
			Metadata:   metadataFromDomain(c.Metadata),
			Similarity: c.Similarity,
			Distance:   c.Distance,
		}
	}
	return ResultSet{
		Query:        rs.Query,
		Results:      results,
		TotalResults: rs.TotalResults,
		TopK:         rs.TopK,
		Threshold:    rs.Threshold,
	}
}

func metadataFromDomain(m domain.Metadata) Metadata {
	return Metadata{
		Movie:         m.Movie,
		Year:          m.Year,
		Type:          m.Type,
		OriginalQuote: m.OriginalQuote,
		Character:     m.Character,
		Themes:        m.Themes,
		ChunkIndex:    m.ChunkIndex,
		TotalChunks:   m.TotalChunks,
	}
}

// embedderAdapter lifts a public Embedder into the internal contracts.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// BatchEmbed uses the provider's native batching when available and falls
// back to per-text calls otherwise.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}

	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
