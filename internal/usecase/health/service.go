package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the store works but the embedding provider does not.
	// Searches over cached embeddings may still succeed.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable; no search can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status          Status
	Checks          map[string]CheckResult
	DocumentsLoaded int
	Initialized     bool
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	docs      DocCounter
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, docs DocCounter, embedding EmbeddingChecker) *Service {
	return &Service{db: db, docs: docs, embedding: embedding}
}

// Check runs health checks against all components. The store is load-bearing:
// its failure makes the whole report unhealthy. The embedding provider only
// degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	documents := 0
	checks["database"] = CheckOK
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else if n, err := s.docs.Count(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		documents = n
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	if checks["embedding"] == CheckError {
		status = Degraded
	}
	if checks["database"] == CheckError {
		status = Unhealthy
	}

	return Report{
		Status:          status,
		Checks:          checks,
		DocumentsLoaded: documents,
		Initialized:     documents > 0,
	}
}
