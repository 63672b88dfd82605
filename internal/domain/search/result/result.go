package result

import (
	"time"

	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Item is a single search hit returned to the caller.
type Item struct {
	ID         string
	SourceType source.Type
	Title      string
	Snippet    string
	Similarity float64
	// Metadata is nil unless the request asked for metadata.
	Metadata  source.Metadata
	CreatedAt time.Time
}

// Temporal echoes the parsed temporal intent.
type Temporal struct {
	Preset        string
	Start         time.Time
	End           time.Time
	Routing       strategy.Name
	SemanticTerms []string
	Confidence    float64
	// Dropped is true when a recognized range was not applied.
	Dropped bool
}

// Amount echoes the amount filter that was applied.
type Amount struct {
	Min      *float64
	Max      *float64
	Currency string
}

// Metadata describes how a response was produced.
type Metadata struct {
	// Strategy is the routing strategy or fallback level that produced the results.
	Strategy        strategy.Name
	SourcesSearched []source.Type
	DurationMs      int64
	// FallbacksUsed lists every level attempted after the primary strategy.
	// Non-empty means the response is degraded.
	FallbacksUsed []strategy.Name
	Temporal      *Temporal
	Amount        *Amount
}

// Response is the outcome of a search. Zero matches is a successful response.
type Response struct {
	Success        bool
	Results        []Item
	TotalResults   int
	SearchMetadata Metadata
}

// Degraded reports whether any fallback level was used.
func (r *Response) Degraded() bool { return len(r.SearchMetadata.FallbacksUsed) > 0 }
