package retrieval

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/recall/internal/domain/search/scope"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// fakeRepo serves hits from in-memory records. With leaky set it ignores the
// tenant filter, standing in for a broken index.
type fakeRepo struct {
	mu      sync.Mutex
	records map[source.Type][]source.Record
	// vectorScores overrides the KNN similarity per record id.
	vectorScores map[string]float64
	// keywordScores is the raw BM25 score per record id; absent ids do not match.
	keywordScores map[string]float64
	leaky         bool
	err           error
	calls         map[string]int
	scopes        []scope.Scope
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:       map[source.Type][]source.Record{},
		vectorScores:  map[string]float64{},
		keywordScores: map[string]float64{},
		calls:         map[string]int{},
	}
}

func (f *fakeRepo) track(method string, sc scope.Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method+":"+sc.Source.String()]++
	f.scopes = append(f.scopes, sc)
}

func (f *fakeRepo) visible(sc scope.Scope) []source.Record {
	var out []source.Record
	for _, r := range f.records[sc.Source] {
		if !f.leaky && r.TenantID != sc.TenantID {
			continue
		}
		if sc.From != nil && r.Date.Before(*sc.From) {
			continue
		}
		if sc.To != nil && r.Date.After(*sc.To) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeRepo) VectorSearch(_ context.Context, sc scope.Scope, _ []float32, k int) ([]source.Hit, error) {
	f.track("vector", sc)
	if f.err != nil {
		return nil, f.err
	}
	var hits []source.Hit
	for _, r := range f.visible(sc) {
		s, ok := f.vectorScores[r.ID]
		if !ok {
			continue
		}
		rec := r
		rec.Vector = nil
		hits = append(hits, source.Hit{Record: rec, Score: s})
	}
	return limit(hits, k), nil
}

func (f *fakeRepo) KeywordSearch(_ context.Context, sc scope.Scope, _ []string, k int) ([]source.Hit, error) {
	f.track("keyword", sc)
	if f.err != nil {
		return nil, f.err
	}
	var hits []source.Hit
	for _, r := range f.visible(sc) {
		if s, ok := f.keywordScores[r.ID]; ok {
			hits = append(hits, source.Hit{Record: r, Score: s})
		}
	}
	return limit(hits, k), nil
}

func (f *fakeRepo) FuzzySearch(_ context.Context, sc scope.Scope, terms []string, k int) ([]source.Hit, error) {
	f.track("fuzzy", sc)
	if f.err != nil {
		return nil, f.err
	}
	var hits []source.Hit
	for _, r := range f.visible(sc) {
		for _, t := range terms {
			if strings.Contains(strings.ToLower(r.Title+" "+r.Content), strings.ToLower(t)) {
				hits = append(hits, source.Hit{Record: r})
				break
			}
		}
	}
	return limit(hits, k), nil
}

func (f *fakeRepo) List(_ context.Context, sc scope.Scope, offset, n int) ([]source.Hit, error) {
	f.track("list", sc)
	if f.err != nil {
		return nil, f.err
	}
	var hits []source.Hit
	for _, r := range f.visible(sc) {
		hits = append(hits, source.Hit{Record: r})
	}
	if offset >= len(hits) {
		return nil, nil
	}
	return limit(hits[offset:], n), nil
}

func limit(hits []source.Hit, k int) []source.Hit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
