package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/domain/tenant"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

// wed is a Wednesday; "last week" from here is 2025-07-07..2025-07-13.
var wed = time.Date(2025, 7, 16, 10, 0, 0, 0, time.UTC)

var caller = tenant.Identity{ID: "t1", DefaultCurrency: "MYR", KeyName: "test"}

type mockRetriever struct {
	mu         sync.Mutex
	retrieveFn func(ctx context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error)
	queries    []retrieval.Query
}

func (m *mockRetriever) Retrieve(ctx context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.retrieveFn == nil {
		return map[source.Type][]score.Candidate{}, nil
	}
	return m.retrieveFn(ctx, q)
}

type mockEmbedder struct {
	vec    []float32
	err    error
	calls  int
	lastIn string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	m.lastIn = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

type mockQuota struct {
	err   error
	calls int
}

func (m *mockQuota) Consume(_ context.Context, _ string) error {
	m.calls++
	return m.err
}

func newTestService(r Retriever, e Embedder, q QuotaChecker) *Service {
	s := New(r, e, q, DefaultConfig())
	s.now = func() time.Time { return wed }
	return s
}

func okEmbedder() *mockEmbedder { return &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}} }

func mustRequest(t *testing.T, p request.Params) *request.Request {
	t.Helper()
	if len(p.Sources) == 0 {
		p.Sources = []string{"receipt"}
	}
	req, err := request.New(p, request.DefaultOptions())
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func cand(t source.Type, id string, combined float64) score.Candidate {
	return score.Candidate{
		Record: source.Record{
			ID: id, Type: t, TenantID: "t1", Title: "title " + id,
			CreatedAt: wed.Add(-time.Hour),
		},
		CombinedScore: combined,
	}
}

// rows returns n candidates of t with descending scores starting at top.
func rows(t source.Type, n int, top float64) []score.Candidate {
	out := make([]score.Candidate, n)
	for i := range out {
		out[i] = cand(t, fmt.Sprintf("%s-%d", t, i), top-float64(i)*0.01)
	}
	return out
}

func isKeywordOnly(q retrieval.Query) bool {
	return !q.Listing && !q.Channels.Vector && q.Channels.Keyword
}
