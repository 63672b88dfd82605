package db

import "github.com/kailas-cloud/recall/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for full-text search over one or more TEXT fields.
// Terms are OR-ed. With Fuzzy set, each term matches within Levenshtein
// distance 1 and hits carry no score.
type TextQuery struct {
	IndexName    string
	Fields       []string
	Terms        []string
	Fuzzy        bool
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// ListQuery is the input for unscored filtered listing.
type ListQuery struct {
	IndexName    string
	Filters      filter.Expression
	Offset       int
	Limit        int
	SortBy       string
	Ascending    bool
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single record hit from a search.
// Score is a similarity for KNN, a raw BM25 score for text search and zero otherwise.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
