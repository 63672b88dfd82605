package chi

import (
	"time"

	"github.com/kailas-cloud/recall/internal/domain/source"
)

// ErrorCode is a machine-readable failure code.
type ErrorCode string

// Error codes returned in failure bodies.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeQuotaExceeded     ErrorCode = "quota_exceeded"
	CodeSearchUnavailable ErrorCode = "search_unavailable"
	CodeInternalError     ErrorCode = "internal_error"
)

type errorResponse struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type searchRequest struct {
	Query               string   `json:"query"`
	Sources             []string `json:"sources"`
	Limit               *int     `json:"limit,omitempty"`
	Offset              *int     `json:"offset,omitempty"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
	Filters             *filters `json:"filters,omitempty"`
	AggregationMode     string   `json:"aggregationMode,omitempty"`
	IncludeMetadata     *bool    `json:"includeMetadata,omitempty"`
}

type filters struct {
	DateRange   *dateRange   `json:"dateRange,omitempty"`
	AmountRange *amountRange `json:"amountRange,omitempty"`
	Categories  []string     `json:"categories,omitempty"`
}

type dateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

type amountRange struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

type searchResponse struct {
	Success        bool           `json:"success"`
	Results        []resultItem   `json:"results"`
	TotalResults   int            `json:"totalResults"`
	SearchMetadata searchMetadata `json:"searchMetadata"`
}

type resultItem struct {
	ID         string          `json:"id"`
	SourceType string          `json:"sourceType"`
	Title      string          `json:"title"`
	Snippet    string          `json:"snippet"`
	Similarity float64         `json:"similarity"`
	Metadata   source.Metadata `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type searchMetadata struct {
	Strategy        string        `json:"strategy"`
	SourcesSearched []string      `json:"sourcesSearched"`
	DurationMs      int64         `json:"durationMs"`
	FallbacksUsed   []string      `json:"fallbacksUsed"`
	Temporal        *temporalEcho `json:"temporal,omitempty"`
	Amount          *amountRange  `json:"amount,omitempty"`
}

type temporalEcho struct {
	Preset          string     `json:"preset,omitempty"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	RoutingStrategy string     `json:"routingStrategy"`
	SemanticTerms   []string   `json:"semanticTerms"`
	Confidence      float64    `json:"confidence"`
	Dropped         bool       `json:"dropped,omitempty"`
}

type usageResponse struct {
	TenantID        string       `json:"tenantId"`
	PeriodStartAt   time.Time    `json:"periodStartAt"`
	PeriodEndAt     time.Time    `json:"periodEndAt"`
	Searches        searchUsage  `json:"searches"`
	EmbeddingBudget budgetStatus `json:"embeddingBudget"`
}

type searchUsage struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

type budgetStatus struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensUsed      int64      `json:"tokensUsed"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
