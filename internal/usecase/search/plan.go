package search

import (
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/recall/internal/domain/search/amount"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/search/temporal"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

// plan is everything one search resolved before retrieval.
// Levels read it; only the embedding step writes to it.
type plan struct {
	tenantID string
	query    string
	now      time.Time

	parsed temporal.Result
	// amount is the applied bound: explicit filters win over the parsed one.
	amount     *amount.Range
	from, to   *time.Time
	categories []string
	sources    []source.Type
	depth      int

	semanticTerms []string
	// keywordTerms are the semantic terms without record nouns, which every
	// row of a source would match.
	keywordTerms []string

	primary strategy.Name
	profile strategy.Profile
	// threshold overrides the vector floor when the caller supplied one.
	threshold *float64

	embedding []float32
	embedErr  error
}

// preprocess trims, drops control characters and collapses whitespace.
func preprocess(q string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, q)
	return strings.Join(strings.Fields(cleaned), " ")
}

func newPlan(tenantID, defaultCurrency string, req *request.Request, depth int, now time.Time) *plan {
	text := preprocess(req.Query())
	f := req.Filters()

	p := &plan{
		tenantID:   tenantID,
		query:      text,
		now:        now,
		categories: f.Categories,
		sources:    req.Sources(),
		depth:      max(depth, req.Offset()+req.Limit()),
		threshold:  req.SimilarityThreshold(),
	}

	parsedAmount := amount.Parse(text, defaultCurrency)
	p.parsed = temporal.Parse(amount.Strip(text), now)

	switch {
	case f.HasAmount():
		p.amount = &amount.Range{
			Min:      f.MinAmount,
			Max:      f.MaxAmount,
			Currency: strings.ToUpper(f.Currency),
			Explicit: f.Currency != "",
		}
	case parsedAmount != nil:
		p.amount = parsedAmount
	}

	switch {
	case f.HasDate():
		p.from, p.to = f.From, f.To
	case p.parsed.DateRange != nil:
		p.from, p.to = &p.parsed.DateRange.Start, &p.parsed.DateRange.End
	}

	p.semanticTerms = p.parsed.Intent.SemanticTerms
	for _, t := range p.semanticTerms {
		if !temporal.IsDomainNoun(t) {
			p.keywordTerms = append(p.keywordTerms, t)
		}
	}

	p.primary = p.parsed.Intent.RoutingStrategy
	if !p.parsed.Intent.IsTemporalQuery && len(p.semanticTerms) == 0 && (p.amount != nil || f.HasDate()) {
		// "over 200" carries nothing to rank by: list what the filters admit.
		p.primary = strategy.DateFilterOnly
	}

	switch {
	case p.primary == strategy.HybridTemporalSemantic:
		p.profile = strategy.ProfileHybridTemporal
	case isLookup(text, p.keywordTerms):
		p.profile = strategy.ProfileLookup
	default:
		p.profile = strategy.ProfileSemantic
	}
	return p
}

// isLookup reports a name-like query: one keyword or a quoted phrase.
func isLookup(text string, terms []string) bool {
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		return true
	}
	return len(terms) == 1
}

// embedText is what gets vectorized: the semantic remainder of the query,
// or the whole query when nothing is left.
func (p *plan) embedText() string {
	if len(p.semanticTerms) > 0 {
		return strings.Join(p.semanticTerms, " ")
	}
	return p.query
}

func (p *plan) hasAmount() bool { return p.amount != nil }

// searchable lists the sources retrieval actually runs against.
func (p *plan) searchable() []source.Type {
	return retrieval.Searchable(p.sources, p.hasAmount())
}

func (p *plan) base() retrieval.Query {
	q := retrieval.Query{
		TenantID:   p.tenantID,
		Sources:    p.sources,
		From:       p.from,
		To:         p.to,
		Categories: p.categories,
		Depth:      p.depth,
	}
	if p.amount != nil {
		q.MinAmount, q.MaxAmount = p.amount.Min, p.amount.Max
		// The tenant default currency is echoed but only a named one filters.
		if p.amount.Explicit {
			q.Currency = p.amount.Currency
		}
	}
	return q
}

// scored builds a ranked retrieval query over terms with profile prof.
func (p *plan) scored(prof Profile, terms []string) retrieval.Query {
	q := p.base()
	q.Text = strings.Join(terms, " ")
	q.Terms = terms
	q.Embedding = p.embedding
	q.Channels = prof.Channels()
	q.Weights = prof.Weights
	q.Floors = prof.Floors
	if p.threshold != nil && q.Channels.Vector {
		q.Floors.Vector = *p.threshold
	}
	return q
}

// listing builds an unscored newest-first query over the plan's filters.
func (p *plan) listing() retrieval.Query {
	q := p.base()
	q.Listing = true
	return q
}
