package request

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/mode"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestNew_Defaults(t *testing.T) {
	r, err := New(Params{Query: "  coffee  ", Sources: []string{"receipt"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "coffee" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", r.Limit(), DefaultLimit)
	}
	if r.Offset() != 0 {
		t.Errorf("Offset() = %d", r.Offset())
	}
	if r.AggregationMode() != mode.Relevance {
		t.Errorf("AggregationMode() = %q", r.AggregationMode())
	}
	if !r.IncludeMetadata() {
		t.Error("IncludeMetadata() = false, want true by default")
	}
	if r.SimilarityThreshold() != nil {
		t.Error("SimilarityThreshold() should be nil when not supplied")
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	r, err := New(Params{
		Query:               "grab",
		Sources:             []string{"claim", "receipt", "claim"},
		Limit:               intPtr(10),
		Offset:              intPtr(5),
		SimilarityThreshold: floatPtr(0.4),
		AggregationMode:     "grouped",
		IncludeMetadata:     boolPtr(false),
		Filters:             Filters{From: &from, Categories: []string{"travel"}},
	}, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Sources()) != 2 || r.Sources()[0] != source.Claim {
		t.Errorf("Sources() = %v", r.Sources())
	}
	if r.Limit() != 10 || r.Offset() != 5 {
		t.Errorf("Limit/Offset = %d/%d", r.Limit(), r.Offset())
	}
	if *r.SimilarityThreshold() != 0.4 {
		t.Errorf("SimilarityThreshold() = %v", *r.SimilarityThreshold())
	}
	if r.AggregationMode() != mode.Grouped || r.IncludeMetadata() {
		t.Error("unexpected aggregation/includeMetadata")
	}
	if !r.Filters().HasDate() || r.Filters().HasAmount() {
		t.Error("unexpected filters")
	}
}

func TestNew_Validation(t *testing.T) {
	from := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	base := func() Params { return Params{Query: "q", Sources: []string{"receipt"}} }

	tests := []struct {
		name   string
		modify func(*Params)
		want   string
	}{
		{"empty query", func(p *Params) { p.Query = "   " }, "query is required"},
		{"long query", func(p *Params) { p.Query = strings.Repeat("a", MaxQueryLength+1) }, "too long"},
		{"no sources", func(p *Params) { p.Sources = nil }, "source"},
		{"unknown source", func(p *Params) { p.Sources = []string{"invoices"} }, "unknown source"},
		{"limit over max", func(p *Params) { p.Limit = intPtr(MaxLimit + 1) }, "exceeds maximum"},
		{"zero limit", func(p *Params) { p.Limit = intPtr(0) }, "limit must be positive"},
		{"negative offset", func(p *Params) { p.Offset = intPtr(-1) }, "offset"},
		{"threshold", func(p *Params) { p.SimilarityThreshold = floatPtr(1.5) }, "similarityThreshold"},
		{"mode", func(p *Params) { p.AggregationMode = "random" }, "aggregationMode"},
		{"dates", func(p *Params) { p.Filters.From, p.Filters.To = &from, &to }, "dateRange"},
		{"amounts", func(p *Params) { p.Filters.MinAmount, p.Filters.MaxAmount = floatPtr(9), floatPtr(1) }, "amountRange"},
		{"category", func(p *Params) { p.Filters.Categories = []string{" "} }, "categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.modify(&p)
			_, err := New(p, DefaultOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNew_LimitNotClamped(t *testing.T) {
	opts := Options{DefaultLimit: 5, MaxLimit: 10, DefaultMode: mode.Relevance}
	if _, err := New(Params{Query: "q", Sources: []string{"receipt"}, Limit: intPtr(11)}, opts); err == nil {
		t.Fatal("expected error, limit must not be clamped")
	}
	r, err := New(Params{Query: "q", Sources: []string{"receipt"}}, opts)
	if err != nil || r.Limit() != 5 {
		t.Errorf("Limit() = %d, err %v", r.Limit(), err)
	}
}

func TestNew_PluralSources(t *testing.T) {
	r, err := New(Params{Query: "coffee expenses", Sources: []string{"receipts", "claims"}}, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.Sources(); len(got) != 2 || got[0] != source.Receipt || got[1] != source.Claim {
		t.Errorf("Sources() = %v, want [receipt claim]", got)
	}
}
