// Package chi exposes the search API over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/tenant"
	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

const (
	headerEmbeddingTokens = "X-Embedding-Tokens"
	maxBodyBytes          = 64 << 10
)

// Searcher runs one search for an authenticated caller.
type Searcher interface {
	Search(ctx context.Context, id tenant.Identity, req *request.Request) (result.Response, error)
}

// UsageReporter builds a tenant's month-to-date usage.
type UsageReporter interface {
	Report(ctx context.Context, tenantID string) (domusage.Report, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	usage         UsageReporter
	health        HealthChecker
	opts          request.Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. opts bounds inbound search parameters.
func NewServer(
	search Searcher,
	usage UsageReporter,
	health HealthChecker,
	opts request.Options,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		usage:  usage,
		health: health,
		opts:   opts,
		logger: logger,
	}
	// Order matters: an exhausted chain wraps the last level's error.
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrTenantRequired, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrAllFallbacksFailed, http.StatusServiceUnavailable, CodeSearchUnavailable),
		sentinelHandler(domain.ErrRetrieval, http.StatusServiceUnavailable, CodeSearchUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusServiceUnavailable, CodeSearchUnavailable),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusServiceUnavailable, CodeSearchUnavailable),
	}
	return s
}

// Router builds the chi router: /health and /metrics are public,
// everything under /v1 requires an API key.
func (s *Server) Router(keys map[string]tenant.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyAuthMiddleware(keys))
		r.Post("/search", s.Search)
		r.Get("/usage", s.Usage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	id, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
		return
	}

	var body searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := request.New(paramsFromBody(body), s.opts)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, id, &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchResponseFrom(&resp))
}

// Usage handles GET /v1/usage.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	id, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing api key")
		return
	}

	report, err := s.usage.Report(r.Context(), id.ID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	b := report.Budget()
	resp := usageResponse{
		TenantID:      report.TenantID(),
		PeriodStartAt: time.UnixMilli(report.PeriodStart()).UTC(),
		PeriodEndAt:   time.UnixMilli(report.PeriodEnd()).UTC(),
		Searches: searchUsage{
			Used:      report.Searches().Used,
			Limit:     report.Searches().Limit,
			Remaining: report.Searches().Remaining(),
		},
		EmbeddingBudget: budgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensUsed:      b.TokensUsed(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		},
	}
	if b.ResetsAt() > 0 {
		resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
		resp.EmbeddingBudget.ResetsAt = &resetsAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func paramsFromBody(b searchRequest) request.Params {
	p := request.Params{
		Query:               b.Query,
		Sources:             b.Sources,
		Limit:               b.Limit,
		Offset:              b.Offset,
		SimilarityThreshold: b.SimilarityThreshold,
		AggregationMode:     b.AggregationMode,
		IncludeMetadata:     b.IncludeMetadata,
	}
	if f := b.Filters; f != nil {
		if f.DateRange != nil {
			p.Filters.From, p.Filters.To = f.DateRange.Start, f.DateRange.End
		}
		if f.AmountRange != nil {
			p.Filters.MinAmount, p.Filters.MaxAmount = f.AmountRange.Min, f.AmountRange.Max
			p.Filters.Currency = f.AmountRange.Currency
		}
		p.Filters.Categories = f.Categories
	}
	return p
}

func searchResponseFrom(r *result.Response) searchResponse {
	md := r.SearchMetadata
	out := searchResponse{
		Success:      r.Success,
		Results:      make([]resultItem, len(r.Results)),
		TotalResults: r.TotalResults,
		SearchMetadata: searchMetadata{
			Strategy:        md.Strategy.String(),
			SourcesSearched: make([]string, len(md.SourcesSearched)),
			DurationMs:      md.DurationMs,
			FallbacksUsed:   make([]string, len(md.FallbacksUsed)),
		},
	}
	for i, it := range r.Results {
		out.Results[i] = resultItem{
			ID:         it.ID,
			SourceType: it.SourceType.String(),
			Title:      it.Title,
			Snippet:    it.Snippet,
			Similarity: it.Similarity,
			Metadata:   it.Metadata,
			CreatedAt:  it.CreatedAt,
		}
	}
	for i, t := range md.SourcesSearched {
		out.SearchMetadata.SourcesSearched[i] = t.String()
	}
	for i, f := range md.FallbacksUsed {
		out.SearchMetadata.FallbacksUsed[i] = f.String()
	}
	if t := md.Temporal; t != nil {
		echo := &temporalEcho{
			Preset:          t.Preset,
			RoutingStrategy: t.Routing.String(),
			SemanticTerms:   t.SemanticTerms,
			Confidence:      t.Confidence,
			Dropped:         t.Dropped,
		}
		if echo.SemanticTerms == nil {
			echo.SemanticTerms = []string{}
		}
		if !t.Start.IsZero() {
			start, end := t.Start, t.End
			echo.Start, echo.End = &start, &end
		}
		out.SearchMetadata.Temporal = echo
	}
	if a := md.Amount; a != nil {
		out.SearchMetadata.Amount = &amountRange{Min: a.Min, Max: a.Max, Currency: a.Currency}
	}
	return out
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Success: false, Code: code, Message: message})
}

// sentinelHandler matches a single sentinel and answers with its text only.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// detailHandler matches a sentinel whose wrapped message is safe to show.
func detailHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
