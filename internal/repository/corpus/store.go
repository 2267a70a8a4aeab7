package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kailas-cloud/quotedex/internal/domain"
)

// Config controls corpus loading.
type Config struct {
	Path         string
	MaxRecords   int // source rows beyond the cap are ignored
	ChunkSize    int
	ChunkOverlap int
}

// Store holds the loaded corpus in memory for the process lifetime.
// Records never change after Load, so reads need no locking.
type Store struct {
	records []domain.Record
}

// Load reads the quote CSV at cfg.Path and renders it into embeddable
// records. Read and format problems wrap domain.ErrDataSource; a broken
// corpus is fatal at startup, not something to limp past.
func Load(cfg Config) (*Store, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrDataSource, cfg.Path, err)
	}
	defer f.Close()

	records, err := parse(f, cfg)
	if err != nil {
		return nil, err
	}

	return &Store{records: records}, nil
}

// Records returns the loaded records in corpus order.
func (s *Store) Records() []domain.Record { return s.records }

// Len returns the number of loaded records, chunks counted individually.
func (s *Store) Len() int { return len(s.records) }

func parse(r io.Reader, cfg Config) ([]domain.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column layout is validated via the header

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", domain.ErrDataSource, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for row := 1; ; row++ {
		if cfg.MaxRecords > 0 && row > cfg.MaxRecords {
			break
		}

		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", domain.ErrDataSource, row, err)
		}

		records = append(records, renderRow(strconv.Itoa(row), fields, cols, cfg)...)
	}

	return records, nil
}

// columns holds header positions; -1 marks an absent optional column.
type columns struct {
	quote, movie, year     int
	typ, character, themes int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{quote: -1, movie: -1, year: -1, typ: -1, character: -1, themes: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "quote":
			cols.quote = i
		case "movie":
			cols.movie = i
		case "year":
			cols.year = i
		case "type":
			cols.typ = i
		case "character":
			cols.character = i
		case "themes":
			cols.themes = i
		}
	}
	if cols.quote < 0 || cols.movie < 0 || cols.year < 0 {
		return columns{}, fmt.Errorf("%w: csv needs quote, movie and year columns", domain.ErrDataSource)
	}
	return cols, nil
}

// renderRow converts one CSV row into records: a single record normally,
// several when the rendered text exceeds the chunk size.
func renderRow(id string, fields []string, cols columns, cfg Config) []domain.Record {
	get := func(idx int) string {
		if idx < 0 || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	quote := get(cols.quote)
	meta := domain.Metadata{
		Movie:         get(cols.movie),
		Type:          get(cols.typ),
		OriginalQuote: quote,
		Character:     get(cols.character),
	}
	if meta.Type == "" {
		meta.Type = "movie"
	}
	if y, err := strconv.Atoi(get(cols.year)); err == nil {
		meta.Year = y
	}
	if themes := get(cols.themes); themes != "" {
		meta.Themes = splitThemes(themes)
	}

	text := renderText(quote, meta.Movie, meta.Year, meta.Type)

	chunks := splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
	if len(chunks) == 1 {
		return []domain.Record{{ID: id, Text: text, Metadata: meta}}
	}

	records := make([]domain.Record, len(chunks))
	for i, chunk := range chunks {
		m := meta
		m.ChunkIndex = i
		m.TotalChunks = len(chunks)
		records[i] = domain.Record{
			ID:       fmt.Sprintf("%s_chunk_%d", id, i),
			Text:     chunk,
			Metadata: m,
		}
	}
	return records
}

// renderText produces the document that gets embedded. The layout is part of
// the index contract: changing it invalidates every stored vector.
func renderText(quote, movie string, year int, typ string) string {
	return fmt.Sprintf("Quote: \"%s\"\nMovie: %s (%d)\nType: %s", quote, movie, year, typ)
}

func splitThemes(s string) []string {
	parts := strings.Split(s, ",")
	themes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			themes = append(themes, p)
		}
	}
	return themes
}
