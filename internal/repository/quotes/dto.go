package quotes

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/quotedex/internal/db"
	"github.com/kailas-cloud/quotedex/internal/domain"
)

// returnFields lists the hash fields fetched per KNN hit. The db layer adds
// __vector_score on its own; __vector stays out to keep replies small.
func returnFields() []string {
	return []string{
		"__content", "movie", "year", "type", "original_quote",
		"character", "themes", "chunk_index", "total_chunks",
	}
}

// quoteToHash converts an embedded quote to a field map for HSET.
// Optional attributes only get a field when set, so HGETALL round-trips
// distinguish "absent" from "zero".
func quoteToHash(q *domain.EmbeddedQuote) map[string]string {
	m := map[string]string{
		"__content":      q.Text,
		"__vector":       vectorToBytes(q.Vector),
		"movie":          q.Metadata.Movie,
		"year":           strconv.Itoa(q.Metadata.Year),
		"type":           q.Metadata.Type,
		"original_quote": q.Metadata.OriginalQuote,
	}
	if q.Metadata.Character != "" {
		m["character"] = q.Metadata.Character
	}
	if len(q.Metadata.Themes) > 0 {
		m["themes"] = strings.Join(q.Metadata.Themes, ",")
	}
	if q.Metadata.IsChunk() {
		m["chunk_index"] = strconv.Itoa(q.Metadata.ChunkIndex)
		m["total_chunks"] = strconv.Itoa(q.Metadata.TotalChunks)
	}
	return m
}

// parseCandidates converts a db.SearchResult into ordered domain candidates,
// preserving the engine's ranking.
func parseCandidates(sr *db.SearchResult, keyPrefix string) []domain.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	out := make([]domain.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, keyPrefix)
		out = append(out, candidateFromEntry(id, entry))
	}
	return out
}

// candidateFromEntry hydrates one candidate from flat hash fields.
func candidateFromEntry(id string, entry db.SearchEntry) domain.Candidate {
	meta := domain.Metadata{
		Movie:         entry.Fields["movie"],
		Type:          entry.Fields["type"],
		OriginalQuote: entry.Fields["original_quote"],
		Character:     entry.Fields["character"],
	}
	if v := entry.Fields["year"]; v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			meta.Year = year
		}
	}
	if v := entry.Fields["themes"]; v != "" {
		meta.Themes = strings.Split(v, ",")
	}
	if v := entry.Fields["total_chunks"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			meta.TotalChunks = n
		}
		if idx, err := strconv.Atoi(entry.Fields["chunk_index"]); err == nil {
			meta.ChunkIndex = idx
		}
	}

	return domain.Candidate{
		ID:       id,
		Document: entry.Fields["__content"],
		Metadata: meta,
		Distance: entry.Distance,
	}
}

// vectorToBytes serializes []float32 to the binary string FT expects in hash
// fields (little-endian, 4 bytes per component).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
