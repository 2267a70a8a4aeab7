package domain

import "time"

// Initialization outcome statuses.
const (
	// InitStatusExists means the index already held data and was left as is.
	InitStatusExists = "exists"
	// InitStatusCreated means the corpus was embedded and indexed.
	InitStatusCreated = "created"
)

// InitReport describes the outcome of one initialization run.
type InitReport struct {
	Status  string
	Message string
	Count   int
	Rebuilt bool
	Elapsed time.Duration
}
