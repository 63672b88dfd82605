package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/domain/tenant"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/usecase/retrieval"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

func TestSearch_Unauthorized(t *testing.T) {
	r := &mockRetriever{}
	e := okEmbedder()
	svc := newTestService(r, e, nil)

	_, err := svc.Search(context.Background(), tenant.Identity{}, mustRequest(t, request.Params{Query: "coffee"}))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(r.queries) != 0 || e.calls != 0 {
		t.Error("nothing may run before authorization")
	}
}

func TestSearch_SemanticOnly(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 2, 0.9)}, nil
	}}
	e := okEmbedder()
	svc := newTestService(r, e, nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "  coffee\tat   starbucks "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}
	if resp.SearchMetadata.Strategy != strategy.SemanticOnly {
		t.Errorf("strategy = %q", resp.SearchMetadata.Strategy)
	}
	if resp.SearchMetadata.FallbacksUsed == nil || len(resp.SearchMetadata.FallbacksUsed) != 0 {
		t.Errorf("fallbacksUsed = %v, want empty", resp.SearchMetadata.FallbacksUsed)
	}
	if e.lastIn != "coffee starbucks" {
		t.Errorf("embedded %q", e.lastIn)
	}

	q := r.queries[0]
	if q.TenantID != "t1" || q.From != nil || !q.Channels.Vector {
		t.Errorf("unexpected primary query: %+v", q)
	}
	want := DefaultConfig().Profiles[strategy.ProfileSemantic].Weights
	if q.Weights != want {
		t.Errorf("weights = %+v, want %+v", q.Weights, want)
	}
	if !slices.Equal(q.Terms, []string{"coffee", "starbucks"}) {
		t.Errorf("terms = %v", q.Terms)
	}
}

func TestSearch_HybridTemporal(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.8)}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)

	resp, err := svc.Search(context.Background(), caller,
		mustRequest(t, request.Params{Query: "find me all receipts from last week"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SearchMetadata.Strategy != strategy.HybridTemporalSemantic {
		t.Fatalf("strategy = %q", resp.SearchMetadata.Strategy)
	}

	q := r.queries[0]
	if q.From == nil || q.To == nil {
		t.Fatal("date range must be applied")
	}
	if !q.From.Equal(time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)) ||
		q.To.Format(time.DateOnly) != "2025-07-13" {
		t.Errorf("range = %v..%v", q.From, q.To)
	}
	if len(q.Terms) != 0 {
		t.Errorf("record nouns are not keyword terms, got %v", q.Terms)
	}
	if q.Weights != DefaultConfig().Profiles[strategy.ProfileHybridTemporal].Weights {
		t.Errorf("weights = %+v", q.Weights)
	}

	tm := resp.SearchMetadata.Temporal
	if tm == nil || tm.Preset != "last week" || tm.Dropped {
		t.Errorf("temporal metadata = %+v", tm)
	}
}

func TestSearch_DateFilterOnlySkipsEmbedding(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 3, 0)}, nil
	}}
	e := okEmbedder()
	svc := newTestService(r, e, nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	resp, err := svc.Search(ctx, caller, mustRequest(t, request.Params{Query: "last week"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.calls != 0 || !usage.Skipped {
		t.Errorf("embedding must be skipped (calls=%d skipped=%v)", e.calls, usage.Skipped)
	}
	if resp.SearchMetadata.Strategy != strategy.DateFilterOnly {
		t.Errorf("strategy = %q", resp.SearchMetadata.Strategy)
	}
	if q := r.queries[0]; !q.Listing || q.From == nil {
		t.Errorf("expected dated listing, got %+v", q)
	}
}

func TestSearch_TemporalDropped(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.7)}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee last 2 hours"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.queries[0].From != nil {
		t.Error("sub-day window must not filter hybrid retrieval")
	}
	if tm := resp.SearchMetadata.Temporal; tm == nil || !tm.Dropped {
		t.Errorf("expected dropped temporal metadata, got %+v", tm)
	}
}

func TestSearch_AmountFilter(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.7)}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{
		Query:   "find me receipts over 200",
		Sources: []string{"receipt", "business_directory"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := r.queries[0]
	if q.MinAmount == nil || *q.MinAmount != 200 || q.MaxAmount != nil {
		t.Errorf("amount bounds = %v..%v", q.MinAmount, q.MaxAmount)
	}
	if q.Currency != "" {
		t.Errorf("implicit currency must not filter, got %q", q.Currency)
	}
	if !slices.Equal(resp.SearchMetadata.SourcesSearched, []source.Type{source.Receipt}) {
		t.Errorf("sourcesSearched = %v", resp.SearchMetadata.SourcesSearched)
	}
	if a := resp.SearchMetadata.Amount; a == nil || a.Currency != "MYR" || *a.Min != 200 {
		t.Errorf("amount metadata = %+v", a)
	}
}

func TestSearch_ThresholdOverridesVectorFloor(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.7)}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)
	th := 0.77

	_, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{
		Query: "coffee beans", SimilarityThreshold: &th,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.queries[0].Floors.Vector; got != 0.77 {
		t.Errorf("vector floor = %v, want 0.77", got)
	}
}

func TestSearch_LookupProfile(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.7)}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)

	for _, query := range []string{"powercat", `"Kopi Tiam Jaya"`} {
		r.queries = nil
		if _, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: query})); err != nil {
			t.Fatalf("%s: %v", query, err)
		}
		if r.queries[0].Weights != DefaultConfig().Profiles[strategy.ProfileLookup].Weights {
			t.Errorf("%s: expected lookup weights, got %+v", query, r.queries[0].Weights)
		}
	}
}

func TestSearch_EmbeddingFailureDegrades(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		if isKeywordOnly(q) {
			return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.5)}, nil
		}
		return nil, errors.New("unexpected query")
	}}
	e := &mockEmbedder{err: fmt.Errorf("%w: 503", domain.ErrEmbeddingProviderError)}
	svc := newTestService(r, e, nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee at starbucks"}))
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if !resp.Success || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	want := []strategy.Name{strategy.VectorOnly, strategy.LegacyKeyword}
	if !slices.Equal(resp.SearchMetadata.FallbacksUsed, want) {
		t.Errorf("fallbacksUsed = %v, want %v", resp.SearchMetadata.FallbacksUsed, want)
	}
	if resp.SearchMetadata.Strategy != strategy.LegacyKeyword {
		t.Errorf("strategy = %q", resp.SearchMetadata.Strategy)
	}
	if !resp.Degraded() {
		t.Error("response must be marked degraded")
	}
	if len(r.queries) != 1 {
		t.Errorf("vector levels must fail without calling retrieval, got %d calls", len(r.queries))
	}
}

func TestSearch_EmptyPrimaryFallsThrough(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(_ context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		if q.Channels.Vector && q.Weights.Semantic == 1 {
			return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 2, 0.6)}, nil
		}
		return map[source.Type][]score.Candidate{source.Receipt: {}}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee beans"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SearchMetadata.Strategy != strategy.VectorOnly || len(resp.Results) != 2 {
		t.Errorf("expected vector_only hit, got %+v", resp.SearchMetadata)
	}
}

func TestSearch_AllFallbacksFail(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(context.Context, retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return nil, fmt.Errorf("%w: index offline", domain.ErrRetrieval)
	}}
	e := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	q := &mockQuota{}
	svc := newTestService(r, e, q)

	_, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee"}))
	if !errors.Is(err, domain.ErrAllFallbacksFailed) {
		t.Fatalf("expected ErrAllFallbacksFailed, got %v", err)
	}
	if q.calls != 0 {
		t.Error("failed searches must not consume quota")
	}
}

func TestSearch_ZeroRowsIsSuccess(t *testing.T) {
	r := &mockRetriever{}
	svc := newTestService(r, okEmbedder(), nil)

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "unicorn"}))
	if err != nil {
		t.Fatalf("zero rows must not be an error: %v", err)
	}
	if !resp.Success || resp.Results == nil || len(resp.Results) != 0 || resp.TotalResults != 0 {
		t.Errorf("expected empty success, got %+v", resp)
	}
	want := []strategy.Name{strategy.VectorOnly, strategy.LegacyKeyword, strategy.RecentListing}
	if !slices.Equal(resp.SearchMetadata.FallbacksUsed, want) {
		t.Errorf("fallbacksUsed = %v, want %v", resp.SearchMetadata.FallbacksUsed, want)
	}
}

func TestSearch_TimeoutJumpsToRecentListing(t *testing.T) {
	var listingCtxErr error
	r := &mockRetriever{retrieveFn: func(ctx context.Context, q retrieval.Query) (map[source.Type][]score.Candidate, error) {
		if q.Listing {
			listingCtxErr = ctx.Err()
			return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 2, 0)}, nil
		}
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, ctx.Err())
	}}
	svc := newTestService(r, okEmbedder(), nil)
	svc.cfg.Timeout = 20 * time.Millisecond

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee beans"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.SearchMetadata.Strategy != strategy.RecentListing {
		t.Errorf("strategy = %q", resp.SearchMetadata.Strategy)
	}
	if !slices.Equal(resp.SearchMetadata.FallbacksUsed, []strategy.Name{strategy.RecentListing}) {
		t.Errorf("fallbacksUsed = %v", resp.SearchMetadata.FallbacksUsed)
	}
	if listingCtxErr != nil {
		t.Errorf("recent listing ran on an expired context: %v", listingCtxErr)
	}
	last := r.queries[len(r.queries)-1]
	if last.From == nil || !last.From.Equal(wed.Add(-DefaultConfig().RecentWindow)) {
		t.Errorf("recent window start = %v", last.From)
	}
}

func TestSearch_FatalRetrievalErrorStopsChain(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(context.Context, retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return nil, domain.ErrTenantRequired
	}}
	svc := newTestService(r, okEmbedder(), nil)

	_, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee"}))
	if !errors.Is(err, domain.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
	if len(r.queries) != 1 {
		t.Errorf("fatal error must not be retried, got %d attempts", len(r.queries))
	}
}

func TestSearch_QuotaExceeded(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(context.Context, retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{source.Receipt: rows(source.Receipt, 1, 0.9)}, nil
	}}
	q := &mockQuota{err: domain.ErrQuotaExceeded}
	svc := newTestService(r, okEmbedder(), q)

	_, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{Query: "coffee"}))
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if q.calls != 1 {
		t.Errorf("quota calls = %d", q.calls)
	}
}

func TestSearch_LimitAppliesAfterMerge(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(context.Context, retrieval.Query) (map[source.Type][]score.Candidate, error) {
		return map[source.Type][]score.Candidate{
			source.Receipt:           rows(source.Receipt, 10, 0.95),
			source.BusinessDirectory: rows(source.BusinessDirectory, 10, 0.90),
			source.Claim:             rows(source.Claim, 10, 0.99),
		}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)
	limit := 10

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{
		Query:   "coffee",
		Sources: []string{"receipt", "business_directory", "claim"},
		Limit:   &limit,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 10 || resp.TotalResults != 30 {
		t.Fatalf("results=%d total=%d", len(resp.Results), resp.TotalResults)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Similarity > resp.Results[i-1].Similarity {
			t.Fatalf("results not globally ranked at %d", i)
		}
	}
	if resp.Results[0].SourceType != source.Claim {
		t.Errorf("best result from %q", resp.Results[0].SourceType)
	}
	if r.queries[0].Depth < 10 {
		t.Errorf("per-source depth %d is below the page size", r.queries[0].Depth)
	}
}

func TestSearch_MetadataOmitted(t *testing.T) {
	r := &mockRetriever{retrieveFn: func(context.Context, retrieval.Query) (map[source.Type][]score.Candidate, error) {
		c := cand(source.Receipt, "r1", 0.9)
		c.Record.Metadata = source.ReceiptMetadata{Merchant: "Starbucks"}
		return map[source.Type][]score.Candidate{source.Receipt: {c}}, nil
	}}
	svc := newTestService(r, okEmbedder(), nil)
	off := false

	resp, err := svc.Search(context.Background(), caller, mustRequest(t, request.Params{
		Query: "coffee last week", IncludeMetadata: &off,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Results[0].Metadata != nil || resp.SearchMetadata.Temporal != nil {
		t.Error("metadata must be omitted when not requested")
	}
}
