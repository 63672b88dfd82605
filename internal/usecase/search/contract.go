package search

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

// Retriever runs one hybrid retrieval across the requested sources.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// QuotaChecker charges one search against the tenant's quota.
// It returns domain.ErrQuotaExceeded when the tenant is over its limit.
type QuotaChecker interface {
	Consume(ctx context.Context, tenantID string) error
}
