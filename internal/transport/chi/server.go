package chi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quotedex/internal/domain"
	"github.com/kailas-cloud/quotedex/internal/version"

	healthuc "github.com/kailas-cloud/quotedex/internal/usecase/health"
	initializeuc "github.com/kailas-cloud/quotedex/internal/usecase/initialize"
	searchuc "github.com/kailas-cloud/quotedex/internal/usecase/search"
	statsuc "github.com/kailas-cloud/quotedex/internal/usecase/stats"
)

// Wire error codes.
const (
	codeBadRequest           = "bad_request"
	codeUnauthorized         = "unauthorized"
	codeConflict             = "conflict"
	codeQuotaExceeded        = "quota_exceeded"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeIndexUnavailable     = "index_unavailable"
	codeInternal             = "internal"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ConfigSnapshot is the non-secret configuration echo served at /config.
// The transport also reads search defaults from it when a request omits
// top_k or similarity_threshold.
type ConfigSnapshot struct {
	EmbeddingModel             string  `json:"embedding_model"`
	Dimensions                 int     `json:"dimensions"`
	ChunkSize                  int     `json:"chunk_size"`
	ChunkOverlap               int     `json:"chunk_overlap"`
	DefaultTopK                int     `json:"default_top_k"`
	MaxTopK                    int     `json:"max_top_k"`
	DefaultSimilarityThreshold float64 `json:"default_similarity_threshold"`
	MaxRecords                 int     `json:"max_records"`
}

// Server exposes the retrieval API over HTTP.
type Server struct {
	search        *searchuc.Service
	initialize    *initializeuc.Service
	stats         *statsuc.Service
	health        *healthuc.Service
	cfg           ConfigSnapshot
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	initialize *initializeuc.Service,
	stats *statsuc.Service,
	health *healthuc.Service,
	cfg ConfigSnapshot,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:     search,
		initialize: initialize,
		stats:      stats,
		health:     health,
		cfg:        cfg,
		logger:     logger,
	}
	// Quota check precedes the provider check: a rejected budget call carries
	// both sentinels and must map to 429, not 502.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, codeQuotaExceeded),
		sentinelHandler(domain.ErrInitInProgress, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/initialize", s.handleInitialize)
	r.Post("/initialize", s.handleInitialize)
	r.Get("/search", s.handleSearchGet)
	r.Post("/search", s.handleSearchPost)
	r.Get("/stats", s.handleStats)
	r.Get("/config", s.handleConfig)
	r.Get("/metrics", s.handleMetrics)
}

type rootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// handleRoot handles GET / (liveness).
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Status:  "healthy",
		Message: "RAG Retrieval System is running",
		Version: version.Version,
	})
}

type healthResponse struct {
	Status          string            `json:"status"`
	Checks          map[string]string `json:"checks"`
	DocumentsLoaded int               `json:"documents_loaded"`
	Initialized     bool              `json:"initialized"`
}

// handleHealth handles GET /health. Degraded still answers 200: searches may
// succeed on cached embeddings.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{
		Status:          string(report.Status),
		Checks:          checks,
		DocumentsLoaded: report.DocumentsLoaded,
		Initialized:     report.Initialized,
	})
}

type initializeRequest struct {
	ForceRebuild *bool `json:"force_rebuild"`
}

type initializeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Rebuilt   bool   `json:"rebuilt"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// handleInitialize handles GET and POST /initialize. force_rebuild comes from
// the query string on either method; a POST JSON body overrides it.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var forceParam *bool
	if err := runtime.BindQueryParameter("form", true, false, "force_rebuild", r.URL.Query(), &forceParam); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid parameter force_rebuild: "+err.Error())
		return
	}

	force := forceParam != nil && *forceParam

	if r.Method == http.MethodPost {
		var req initializeRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		switch {
		case errors.Is(err, io.EOF):
			// no body, the query param alone decides
		case err != nil:
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		case req.ForceRebuild != nil:
			force = *req.ForceRebuild
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.initialize.Initialize(ctx, force)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, initializeResponse{
		Status:    report.Status,
		Message:   report.Message,
		Count:     report.Count,
		Rebuilt:   report.Rebuilt,
		ElapsedMs: report.Elapsed.Milliseconds(),
	})
}

type searchRequest struct {
	Query               *string  `json:"query"`
	TopK                *int     `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

type searchParameters struct {
	TopK                int     `json:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type quoteMetadata struct {
	Movie         string   `json:"movie"`
	Year          int      `json:"year"`
	Type          string   `json:"type"`
	OriginalQuote string   `json:"original_quote"`
	Character     string   `json:"character,omitempty"`
	Themes        []string `json:"themes,omitempty"`
	ChunkIndex    *int     `json:"chunk_index,omitempty"`
	TotalChunks   int      `json:"total_chunks,omitempty"`
}

type searchResultItem struct {
	ID              string        `json:"id"`
	Document        string        `json:"document"`
	Metadata        quoteMetadata `json:"metadata"`
	SimilarityScore float64       `json:"similarity_score"`
	Distance        float64       `json:"distance"`
}

type searchResponse struct {
	Query        string             `json:"query"`
	Results      []searchResultItem `json:"results"`
	TotalResults int                `json:"total_results"`
	Parameters   searchParameters   `json:"parameters"`
}

// handleSearchGet handles GET /search with query-string parameters.
func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &req.Query); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid parameter query: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", q, &req.TopK); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid parameter top_k: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "similarity_threshold", q, &req.SimilarityThreshold); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid parameter similarity_threshold: "+err.Error())
		return
	}

	s.runSearch(w, r, req)
}

// handleSearchPost handles POST /search with a JSON body.
func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s.runSearch(w, r, req)
}

// runSearch resolves absent parameters to configured defaults and executes
// the query. Explicit values pass through as-is; the ranking pipeline clamps
// them to bounds.
func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req searchRequest) {
	q := domain.Query{
		TopK:      s.cfg.DefaultTopK,
		Threshold: s.cfg.DefaultSimilarityThreshold,
	}
	if req.Query != nil {
		q.Text = *req.Query
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}
	if req.SimilarityThreshold != nil {
		q.Threshold = *req.SimilarityThreshold
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rs, err := s.search.Search(ctx, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resultSetToWire(rs))
}

type budgetStatus struct {
	DailyLimit       int64 `json:"daily_limit"`
	DailyUsed        int64 `json:"daily_used"`
	DailyRemaining   int64 `json:"daily_remaining"`
	MonthlyLimit     int64 `json:"monthly_limit"`
	MonthlyUsed      int64 `json:"monthly_used"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
}

type statsResponse struct {
	IndexName      string       `json:"index_name"`
	DocumentCount  int          `json:"document_count"`
	CorpusRecords  int          `json:"corpus_records"`
	EmbeddingModel string       `json:"embedding_model"`
	Dimensions     int          `json:"dimensions"`
	Budget         budgetStatus `json:"budget"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		IndexName:      report.IndexName,
		DocumentCount:  report.DocumentCount,
		CorpusRecords:  report.CorpusRecords,
		EmbeddingModel: report.Model,
		Dimensions:     report.Dimensions,
		Budget: budgetStatus{
			DailyLimit:       report.Budget.DailyLimit,
			DailyUsed:        report.Budget.DailyUsed,
			DailyRemaining:   report.Budget.RemainingDaily,
			MonthlyLimit:     report.Budget.MonthlyLimit,
			MonthlyUsed:      report.Budget.MonthlyUsed,
			MonthlyRemaining: report.Budget.RemainingMonthly,
		},
	})
}

// handleConfig handles GET /config.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultSetToWire(rs domain.ResultSet) searchResponse {
	items := make([]searchResultItem, len(rs.Results))
	for i := range rs.Results {
		items[i] = resultToWire(&rs.Results[i])
	}

	return searchResponse{
		Query:        rs.Query,
		Results:      items,
		TotalResults: rs.TotalResults,
		Parameters: searchParameters{
			TopK:                rs.TopK,
			SimilarityThreshold: rs.Threshold,
		},
	}
}

// resultToWire rounds scores to 4 decimals at the boundary; the core keeps
// full precision.
func resultToWire(c *domain.Candidate) searchResultItem {
	return searchResultItem{
		ID:              c.ID,
		Document:        c.Document,
		Metadata:        metadataToWire(c.Metadata),
		SimilarityScore: round4(c.Similarity),
		Distance:        round4(c.Distance),
	}
}

func metadataToWire(m domain.Metadata) quoteMetadata {
	out := quoteMetadata{
		Movie:         m.Movie,
		Year:          m.Year,
		Type:          m.Type,
		OriginalQuote: m.OriginalQuote,
		Character:     m.Character,
		Themes:        m.Themes,
		TotalChunks:   m.TotalChunks,
	}
	if m.IsChunk() {
		idx := m.ChunkIndex
		out.ChunkIndex = &idx
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    code,
		Message: message,
	}})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrInitInProgress,
		domain.ErrEmbeddingService,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
