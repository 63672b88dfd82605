package request

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/mode"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in characters.
	MaxQueryLength = 1000
	DefaultLimit   = 20
	MaxLimit       = 100
	// MaxOffset bounds pagination depth; each source retrieves offset+limit candidates.
	MaxOffset = 1000
)

// Options are the server-side defaults and bounds applied by New.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	DefaultMode  mode.Aggregation
}

// DefaultOptions returns the built-in bounds.
func DefaultOptions() Options {
	return Options{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit, DefaultMode: mode.Relevance}
}

// Filters are explicit hard filters supplied by the caller.
// They take precedence over ranges parsed from the query text.
type Filters struct {
	From       *time.Time
	To         *time.Time
	MinAmount  *float64
	MaxAmount  *float64
	Currency   string
	Categories []string
}

// HasDate reports whether a date bound is set.
func (f Filters) HasDate() bool { return f.From != nil || f.To != nil }

// HasAmount reports whether an amount bound is set.
func (f Filters) HasAmount() bool { return f.MinAmount != nil || f.MaxAmount != nil }

// Params are the raw inbound search parameters. Nil pointers mean "not supplied".
type Params struct {
	Query               string
	Sources             []string
	Limit               *int
	Offset              *int
	SimilarityThreshold *float64
	Filters             Filters
	AggregationMode     string
	IncludeMetadata     *bool
}

// Request is a validated search query.
type Request struct {
	query           string
	sources         []source.Type
	limit           int
	offset          int
	threshold       *float64
	filters         Filters
	aggregation     mode.Aggregation
	includeMetadata bool
}

// New validates search parameters. Out-of-range values are rejected, never clamped.
// Defaults: limit from opts, offset 0, aggregation from opts, includeMetadata true.
func New(p Params, opts Options) (Request, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return Request{}, invalid("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, invalid("query too long (max %d chars)", MaxQueryLength)
	}

	sources, err := source.ParseTypes(p.Sources)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	limit := opts.DefaultLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	if limit <= 0 {
		return Request{}, invalid("limit must be positive")
	}
	if limit > opts.MaxLimit {
		return Request{}, invalid("limit %d exceeds maximum %d", limit, opts.MaxLimit)
	}

	offset := 0
	if p.Offset != nil {
		offset = *p.Offset
	}
	if offset < 0 {
		return Request{}, invalid("offset must not be negative")
	}
	if offset > MaxOffset {
		return Request{}, invalid("offset %d exceeds maximum %d", offset, MaxOffset)
	}

	if t := p.SimilarityThreshold; t != nil && (*t < 0 || *t > 1) {
		return Request{}, invalid("similarityThreshold must be between 0 and 1")
	}

	agg := opts.DefaultMode
	if p.AggregationMode != "" {
		agg = mode.Aggregation(p.AggregationMode)
	}
	if !agg.IsValid() {
		return Request{}, invalid("invalid aggregationMode: %q", p.AggregationMode)
	}

	if err := validateFilters(p.Filters); err != nil {
		return Request{}, err
	}

	includeMetadata := true
	if p.IncludeMetadata != nil {
		includeMetadata = *p.IncludeMetadata
	}

	return Request{
		query:           query,
		sources:         sources,
		limit:           limit,
		offset:          offset,
		threshold:       p.SimilarityThreshold,
		filters:         p.Filters,
		aggregation:     agg,
		includeMetadata: includeMetadata,
	}, nil
}

func validateFilters(f Filters) error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return invalid("filters.dateRange start is after end")
	}
	if (f.MinAmount != nil && *f.MinAmount < 0) || (f.MaxAmount != nil && *f.MaxAmount < 0) {
		return invalid("filters.amountRange bounds must not be negative")
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		return invalid("filters.amountRange min is greater than max")
	}
	for _, c := range f.Categories {
		if strings.TrimSpace(c) == "" {
			return invalid("filters.categories must not contain empty values")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Sources returns the requested source types, deduplicated in request order.
func (r *Request) Sources() []source.Type { return r.sources }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Offset returns the number of merged results to skip.
func (r *Request) Offset() int { return r.offset }

// SimilarityThreshold returns the caller's vector floor, nil when not supplied.
func (r *Request) SimilarityThreshold() *float64 { return r.threshold }

// Filters returns the explicit hard filters.
func (r *Request) Filters() Filters { return r.filters }

// AggregationMode returns how per-source results are merged.
func (r *Request) AggregationMode() mode.Aggregation { return r.aggregation }

// IncludeMetadata reports whether per-result metadata and intent details are returned.
func (r *Request) IncludeMetadata() bool { return r.includeMetadata }
