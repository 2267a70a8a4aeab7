package quotedex

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotedex/internal/domain"
)

// Option configures the embedded client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	password string

	keyPrefix       string
	indexName       string
	metric          string
	hnswM           int
	hnswEFConstruct int

	corpusPath   string
	maxRecords   int
	chunkSize    int
	chunkOverlap int

	apiKey       string
	baseURL      string
	model        string
	dimensions   int
	embedTimeout time.Duration
	cacheTTL     time.Duration
	embedder     Embedder

	bounds           domain.Bounds
	readinessTimeout time.Duration
	logger           *zap.Logger
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		keyPrefix:       "quotedex:",
		indexName:       "movie_quotes",
		metric:          domain.MetricCosine,
		hnswM:           32,
		hnswEFConstruct: 400,
		corpusPath:      "data/movie_quotes.csv",
		maxRecords:      303,
		chunkSize:       500,
		chunkOverlap:    50,
		model:           "text-embedding-3-small",
		dimensions:      1536,
		embedTimeout:    30 * time.Second,
		bounds: domain.Bounds{
			MinTopK:          1,
			MaxTopK:          20,
			DefaultTopK:      5,
			DefaultThreshold: 0.3,
		},
		readinessTimeout: 10 * time.Second,
		logger:           zap.NewNop(),
	}
}

// WithRedis points the client at a Redis Stack deployment.
func WithRedis(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	}
}

// WithKeyPrefix sets the key namespace for quotes and cache entries.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithCorpusPath sets the quote CSV path.
func WithCorpusPath(path string) Option {
	return func(c *clientConfig) { c.corpusPath = path }
}

// WithOpenAI sets embedding provider credentials. An empty baseURL keeps the
// provider default; set it for OpenAI-compatible gateways.
func WithOpenAI(apiKey, baseURL string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
	}
}

// WithModel sets the embedding model and the dimensionality the index is
// built with.
func WithModel(model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.model = model
		c.dimensions = dimensions
	}
}

// WithEmbedder replaces the OpenAI provider with a custom implementation.
// Takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithEmbeddingCache caches vectors in the database with the given TTL.
// Zero disables caching.
func WithEmbeddingCache(ttl time.Duration) Option {
	return func(c *clientConfig) { c.cacheTTL = ttl }
}

// WithIndex sets the index name and distance metric ("cosine" or "l2").
func WithIndex(name, metric string) Option {
	return func(c *clientConfig) {
		c.indexName = name
		c.metric = metric
	}
}

// WithHNSW overrides graph build parameters.
func WithHNSW(m, efConstruct int) Option {
	return func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	}
}

// WithSearchBounds sets the top-k clamp range and the defaults applied when a
// query omits parameters.
func WithSearchBounds(minTopK, maxTopK, defaultTopK int, defaultThreshold float64) Option {
	return func(c *clientConfig) {
		c.bounds = domain.Bounds{
			MinTopK:          minTopK,
			MaxTopK:          maxTopK,
			DefaultTopK:      defaultTopK,
			DefaultThreshold: defaultThreshold,
		}
	}
}

// WithLogger attaches a logger; the default is a nop.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
