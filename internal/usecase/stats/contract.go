package stats

import "context"

// DocCounter counts indexed documents.
type DocCounter interface {
	Count(ctx context.Context) (int, error)
}

// Corpus reports how many records the loaded corpus holds.
type Corpus interface {
	Len() int
}

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
