package search

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Level is one step of the degradation chain.
type Level interface {
	Name() strategy.Name
	// Applicable reports whether the level can run for p at all.
	Applicable(p *plan) bool
	Attempt(ctx context.Context, p *plan) (map[source.Type][]score.Candidate, error)
}

// levels returns the chain for p: the routed strategy, then vector_only,
// legacy_keyword and recent_listing.
func (s *Service) levels(p *plan) []Level {
	return []Level{
		primaryLevel{r: s.retriever, name: p.primary, profile: s.cfg.Profiles[p.profile]},
		vectorLevel{r: s.retriever, profile: s.cfg.Profiles[strategy.ProfileVectorOnly]},
		keywordLevel{r: s.retriever, profile: s.cfg.Profiles[strategy.ProfileLegacyKeyword]},
		recentLevel{r: s.retriever, window: s.cfg.RecentWindow},
	}
}

// errNoEmbedding wraps the embedding failure for levels that need a vector.
func errNoEmbedding(p *plan) error {
	if p.embedErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingRequired, p.embedErr)
	}
	return domain.ErrEmbeddingRequired
}

type primaryLevel struct {
	r       Retriever
	name    strategy.Name
	profile Profile
}

func (l primaryLevel) Name() strategy.Name { return l.name }

func (l primaryLevel) Applicable(*plan) bool { return true }

func (l primaryLevel) Attempt(ctx context.Context, p *plan) (map[source.Type][]score.Candidate, error) {
	if l.name == strategy.DateFilterOnly {
		return l.r.Retrieve(ctx, p.listing()) //nolint:wrapcheck // retrieval errors are already classified
	}
	if p.embedding == nil {
		return nil, errNoEmbedding(p)
	}
	return l.r.Retrieve(ctx, p.scored(l.profile, p.keywordTerms)) //nolint:wrapcheck // see above
}

// vectorLevel is KNN alone under the same hard filters.
type vectorLevel struct {
	r       Retriever
	profile Profile
}

func (vectorLevel) Name() strategy.Name { return strategy.VectorOnly }

func (vectorLevel) Applicable(p *plan) bool { return p.primary.NeedsEmbedding() }

func (l vectorLevel) Attempt(ctx context.Context, p *plan) (map[source.Type][]score.Candidate, error) {
	if p.embedding == nil {
		return nil, errNoEmbedding(p)
	}
	return l.r.Retrieve(ctx, p.scored(l.profile, nil)) //nolint:wrapcheck // see above
}

// keywordLevel is BM25 plus trigram over every semantic term, record nouns
// included, without an embedding.
type keywordLevel struct {
	r       Retriever
	profile Profile
}

func (keywordLevel) Name() strategy.Name { return strategy.LegacyKeyword }

func (keywordLevel) Applicable(p *plan) bool { return len(p.semanticTerms) > 0 }

func (l keywordLevel) Attempt(ctx context.Context, p *plan) (map[source.Type][]score.Candidate, error) {
	return l.r.Retrieve(ctx, p.scored(l.profile, p.semanticTerms)) //nolint:wrapcheck // see above
}

// recentLevel lists the tenant's newest records inside the window,
// regardless of query text and filters.
type recentLevel struct {
	r      Retriever
	window time.Duration
}

func (recentLevel) Name() strategy.Name { return strategy.RecentListing }

func (recentLevel) Applicable(*plan) bool { return true }

func (l recentLevel) Attempt(ctx context.Context, p *plan) (map[source.Type][]score.Candidate, error) {
	from, to := p.now.Add(-l.window), p.now
	q := p.listing()
	q.From, q.To = &from, &to
	q.MinAmount, q.MaxAmount, q.Currency, q.Categories = nil, nil, "", nil
	return l.r.Retrieve(ctx, q) //nolint:wrapcheck // see above
}

func count(perSource map[source.Type][]score.Candidate) int {
	n := 0
	for _, cs := range perSource {
		n += len(cs)
	}
	return n
}
