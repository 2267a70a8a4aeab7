package domain

// Query is a search request after transport-level defaulting. TopK and
// Threshold may still be out of range here; the pipeline clamps them.
type Query struct {
	Text      string
	TopK      int
	Threshold float64
}

// Bounds is the configured clamp range for query parameters.
type Bounds struct {
	MinTopK          int
	MaxTopK          int
	DefaultTopK      int
	DefaultThreshold float64
}

// ClampTopK forces k into [MinTopK, MaxTopK].
func (b Bounds) ClampTopK(k int) int {
	if k < b.MinTopK {
		return b.MinTopK
	}
	if k > b.MaxTopK {
		return b.MaxTopK
	}
	return k
}

// ClampThreshold forces t into [0, 1].
func (b Bounds) ClampThreshold(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Candidate is a single ranked hit. Distance is the raw value returned by the
// index; Similarity is derived from it by the metric's converter.
type Candidate struct {
	ID         string
	Document   string
	Metadata   Metadata
	Distance   float64
	Similarity float64
}

// ResultSet is the final ordered answer for one query: candidates after
// threshold filtering and top-K truncation, plus the clamped parameters that
// were actually applied.
type ResultSet struct {
	Query        string
	Results      []Candidate
	TotalResults int
	TopK         int
	Threshold    float64
}
