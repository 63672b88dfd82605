package retrieval

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/scope"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Repository reads scored hits from per-source indexes.
// Every call is bounded by the scope's tenant.
type Repository interface {
	VectorSearch(ctx context.Context, sc scope.Scope, vector []float32, k int) ([]source.Hit, error)
	KeywordSearch(ctx context.Context, sc scope.Scope, terms []string, k int) ([]source.Hit, error)
	FuzzySearch(ctx context.Context, sc scope.Scope, terms []string, k int) ([]source.Hit, error)
	List(ctx context.Context, sc scope.Scope, offset, limit int) ([]source.Hit, error)
}
