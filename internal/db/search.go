package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance carries the raw __vector_score reported by the engine,
// in the units of the index distance metric.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
