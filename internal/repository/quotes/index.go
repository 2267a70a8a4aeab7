package quotes

import (
	"github.com/kailas-cloud/quotedex/internal/db"
)

// buildIndex assembles the FT.CREATE definition for the quote index:
// HNSW vector field plus the filterable metadata attributes.
func buildIndex(
	name, prefix string, vectorDim int,
	metric db.DistanceMetric, hnsw HNSWConfig,
) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Text("__content").
		Tag("movie").
		Numeric("year").
		Tag("type").
		TagWithOpts("themes", ",", false).
		VectorHNSW("__vector", vectorDim, metric, hnsw.M, hnsw.EFConstruct).
		As("vector").
		Build()
}
