package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/search/scope"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

var textFields = []string{source.FieldTitle, source.FieldContent}

// Repo implements usecase/retrieval.Repository over per-source FT indexes.
type Repo struct {
	store  store
	prefix string
}

// New creates a search repository. keyPrefix namespaces index and key names.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// VectorSearch runs KNN over the record vectors. Hit scores are cosine similarities.
func (r *Repo) VectorSearch(ctx context.Context, sc scope.Scope, vector []float32, k int) ([]source.Hit, error) {
	expr, err := sc.Expression()
	if err != nil {
		return nil, err
	}
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    sc.Source.IndexName(r.prefix),
		Filters:      expr,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields(sc.Source, false),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", sc.Source, err)
	}
	return r.parseHits(sr, sc.Source), nil
}

// KeywordSearch runs BM25 over title and content. Hit scores are raw BM25.
func (r *Repo) KeywordSearch(ctx context.Context, sc scope.Scope, terms []string, k int) ([]source.Hit, error) {
	return r.text(ctx, sc, terms, k, false)
}

// FuzzySearch returns the trigram candidate pool: records whose title or
// content contains a term within edit distance 1. Hits carry no score.
func (r *Repo) FuzzySearch(ctx context.Context, sc scope.Scope, terms []string, k int) ([]source.Hit, error) {
	return r.text(ctx, sc, terms, k, true)
}

func (r *Repo) text(ctx context.Context, sc scope.Scope, terms []string, k int, fuzzy bool) ([]source.Hit, error) {
	expr, err := sc.Expression()
	if err != nil {
		return nil, err
	}
	if fuzzy {
		terms = fuzzyTerms(terms)
	}
	if len(terms) == 0 {
		return nil, nil
	}
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    sc.Source.IndexName(r.prefix),
		Fields:       textFields,
		Terms:        terms,
		Fuzzy:        fuzzy,
		Filters:      expr,
		TopK:         k,
		ReturnFields: returnFields(sc.Source, true),
	})
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", sc.Source, err)
	}
	return r.parseHits(sr, sc.Source), nil
}

// List returns records inside the scope, newest date first, unscored.
func (r *Repo) List(ctx context.Context, sc scope.Scope, offset, limit int) ([]source.Hit, error) {
	expr, err := sc.Expression()
	if err != nil {
		return nil, err
	}
	sr, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName:    sc.Source.IndexName(r.prefix),
		Filters:      expr,
		Offset:       offset,
		Limit:        limit,
		SortBy:       source.FieldDate,
		ReturnFields: returnFields(sc.Source, false),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", sc.Source, err)
	}
	return r.parseHits(sr, sc.Source), nil
}

// fuzzyTerms keeps terms long enough for %term% matching; shorter ones
// would match almost everything.
func fuzzyTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if len([]rune(t)) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

func returnFields(t source.Type, withVector bool) []string {
	fields := []string{
		source.FieldTenant, source.FieldTitle, source.FieldContent,
		source.FieldDate, source.FieldCreatedAt,
	}
	if withVector {
		fields = append(fields, source.FieldVector)
	}
	for _, f := range t.ExtraFields() {
		if !contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (r *Repo) parseHits(sr *db.SearchResult, t source.Type) []source.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	prefix := t.KeyPrefix(r.prefix)
	hits := make([]source.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, source.Hit{
			Record: parseRecord(strings.TrimPrefix(e.Key, prefix), t, e.Fields),
			Score:  e.Score,
		})
	}
	return hits
}

func parseRecord(id string, t source.Type, f map[string]string) source.Record {
	rec := source.Record{
		ID:        id,
		Type:      t,
		TenantID:  f[source.FieldTenant],
		Title:     f[source.FieldTitle],
		Content:   f[source.FieldContent],
		Vector:    db.DecodeVector(f[source.FieldVector]),
		Date:      source.ParseUnix(f[source.FieldDate]),
		CreatedAt: source.ParseUnix(f[source.FieldCreatedAt]),
		Currency:  f[source.FieldCurrency],
		Metadata:  source.MetadataFromFields(t, f),
	}
	if t.HasAmount() {
		if v, err := strconv.ParseFloat(f[source.FieldAmount], 64); err == nil {
			rec.Amount = &v
		}
	}
	return rec
}
