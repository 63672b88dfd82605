package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
)

const vectorScoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Scores are cosine similarities in [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", q.K)
	queryStr := "*=>" + knnPart
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		fields := append(append([]string{}, q.ReturnFields...), vectorScoreField)
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}
	args = append(args,
		"SORTBY", vectorScoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseKNNResult(raw)
}

// SearchText runs a full-text search via FT.SEARCH. Plain queries return
// BM25 scores; fuzzy queries are unscored.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	textPart := buildTextQuery(q.Fields, q.Terms, q.Fuzzy)
	if textPart == "" {
		return nil, fmt.Errorf("at least one term is required")
	}

	queryStr := textPart
	if filterStr := buildFilter(q.Filters); filterStr != "" {
		queryStr = filterStr + " " + textPart
	}

	args := []string{q.IndexName, queryStr}
	if !q.Fuzzy {
		args = append(args, "WITHSCORES")
	}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "LIMIT", "0", strconv.Itoa(q.TopK), "DIALECT", "2")

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	if q.Fuzzy {
		return parseListResult(raw)
	}
	return parseBM25Result(raw)
}

// SearchList returns filtered records without scoring, optionally sorted by a SORTABLE field.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := buildFilter(q.Filters)
	if queryStr == "" {
		queryStr = "*"
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.SortBy != "" {
		order := "DESC"
		if q.Ascending {
			order = "ASC"
		}
		args = append(args, "SORTBY", q.SortBy, order)
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	raw, err := s.search(ctx, args)
	if err != nil {
		return nil, err
	}
	return parseListResult(raw)
}

func (s *Store) search(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return raw, nil
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	res, err := parseListResult(raw)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if scoreStr, ok := e.Fields[vectorScoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				e.Score = score.FromDistance(d)
			}
			delete(e.Fields, vectorScoreField)
		}
	}
	return res, nil
}

func parseBM25Result(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/3)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: parseFieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	total, err := parseTotal(raw)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parseTotal(raw []rueidis.RedisMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse total: %w", err)
	}
	return int(total), nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildFilter translates a filter.Expression into an FT.SEARCH pre-filter.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Conditions()))
	for _, cond := range expr.Conditions() {
		switch {
		case cond.IsMatch():
			parts = append(parts, buildTagFilter(cond.Key(), cond.Values()))
		case cond.IsRange():
			parts = append(parts, buildNumericFilter(cond.Key(), *cond.Range()))
		}
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(key string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, " | "))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound, maxBound := "-inf", "+inf"
	if r.Min() != nil {
		minBound = strconv.FormatFloat(*r.Min(), 'f', -1, 64)
	}
	if r.Max() != nil {
		maxBound = strconv.FormatFloat(*r.Max(), 'f', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// buildTextQuery renders "@f1|f2:(t1 | t2)". Fuzzy terms are wrapped in %...%.
func buildTextQuery(fields, terms []string, fuzzy bool) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		t = escapeQuery(t)
		if fuzzy {
			t = "%" + t + "%"
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return ""
	}
	body := "(" + strings.Join(parts, " | ") + ")"
	if len(fields) == 0 {
		return body
	}
	return "@" + strings.Join(fields, "|") + ":" + body
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`,`, `\,`,
	`.`, `\.`,
	`/`, `\/`,
	`&`, `\&`,
	`#`, `\#`,
)
