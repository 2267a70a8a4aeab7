package domain

// Record is one corpus entry: the rendered text that gets embedded plus the
// source attributes. Created during corpus load, never mutated.
type Record struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Metadata carries record attributes stored alongside the vector and echoed
// back in search results.
type Metadata struct {
	Movie         string
	Year          int
	Type          string
	OriginalQuote string
	Character     string
	Themes        []string

	// Chunk provenance, set only when the record is a chunk of a longer
	// source text. ChunkIndex is zero-based; TotalChunks > 0 marks a chunk.
	ChunkIndex  int
	TotalChunks int
}

// IsChunk reports whether the record was produced by splitting a longer text.
func (m Metadata) IsChunk() bool { return m.TotalChunks > 0 }

// EmbeddedQuote is a Record paired with its embedding vector, as stored in
// the vector index.
type EmbeddedQuote struct {
	Record
	Vector []float32
}
