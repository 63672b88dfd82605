package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/search/scope"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchListFn func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "recall:"), ms
}

func receiptScope() scope.Scope {
	return scope.Scope{TenantID: "t1", Source: source.Receipt}
}
