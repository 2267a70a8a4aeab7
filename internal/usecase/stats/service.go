package stats

import (
	"context"
	"fmt"
)

// Report is a point-in-time snapshot of the running system.
type Report struct {
	IndexName     string
	DocumentCount int
	CorpusRecords int
	Model         string
	Dimensions    int
	Budget        BudgetReport
}

// BudgetReport mirrors the token budget counters. A limit of 0 means
// unlimited; remaining is -1 when unlimited.
type BudgetReport struct {
	DailyLimit       int64
	DailyUsed        int64
	RemainingDaily   int64
	MonthlyLimit     int64
	MonthlyUsed      int64
	RemainingMonthly int64
}

// Config carries the static values the report echoes.
type Config struct {
	IndexName  string
	Model      string
	Dimensions int
}

// Service assembles stats reports.
type Service struct {
	docs   DocCounter
	corpus Corpus
	budget BudgetReader
	cfg    Config
}

// New creates a Service. budget can be nil (unlimited mode).
func New(docs DocCounter, corpus Corpus, budget BudgetReader, cfg Config) *Service {
	return &Service{docs: docs, corpus: corpus, budget: budget, cfg: cfg}
}

// Stats reports the index state, corpus size, model parameters and token
// budget counters.
func (s *Service) Stats(ctx context.Context) (Report, error) {
	count, err := s.docs.Count(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count indexed documents: %w", err)
	}

	r := Report{
		IndexName:     s.cfg.IndexName,
		DocumentCount: count,
		CorpusRecords: s.corpus.Len(),
		Model:         s.cfg.Model,
		Dimensions:    s.cfg.Dimensions,
		Budget: BudgetReport{
			RemainingDaily:   -1,
			RemainingMonthly: -1,
		},
	}
	if s.budget != nil {
		r.Budget = BudgetReport{
			DailyLimit:       s.budget.DailyLimit(),
			DailyUsed:        s.budget.DailyUsed(),
			RemainingDaily:   s.budget.RemainingDaily(),
			MonthlyLimit:     s.budget.MonthlyLimit(),
			MonthlyUsed:      s.budget.MonthlyUsed(),
			RemainingMonthly: s.budget.RemainingMonthly(),
		}
	}
	return r, nil
}
