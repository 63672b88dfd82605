package redis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIsRedisErr(t *testing.T) {
	if isRedisErr(context.Canceled, "canceled") {
		t.Error("non-redis errors must not match")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "recall:emb:abc")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "recall:emb:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrBy_ReturnsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "recall:quota:t1:2025-07", "1")).
		Return(mock.Result(mock.RedisInt64(42)))

	s := NewStoreForTest(c)
	n, err := s.IncrBy(context.Background(), "recall:quota:t1:2025-07", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("IncrBy = %d, want 42", n)
	}
}

func TestIncrBy_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCRBY", "k", "1")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.IncrBy(context.Background(), "k", 1)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpIncrBy {
		t.Errorf("expected db.Error with INCRBY op, got %v", err)
	}
}

func TestExpire_WithNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "k", "300", "NX")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "k", 5*time.Minute, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithoutNX(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "k", "300")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Expire(context.Background(), "k", 5*time.Minute, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "recall:idx:receipt" &&
				slices.Contains(cmd, "HASH") && slices.Contains(cmd, "SORTABLE")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	def := &db.IndexDefinition{
		Name:     "recall:idx:receipt",
		Prefixes: []string{"recall:receipt:"},
		Fields: []db.IndexField{
			{Name: "tenant_id", Type: db.IndexFieldTag, TagCaseSensitive: true},
			{Name: "date", Type: db.IndexFieldNumeric, Sortable: true},
		},
	}
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	def := &db.IndexDefinition{Name: "idx", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}}
	if err := s.CreateIndex(context.Background(), def); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	def := &db.IndexDefinition{Name: "idx", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}}
	err := s.CreateIndex(context.Background(), def)
	if err == nil || errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected generic error, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name string
		res  rueidis.RedisResult
		want bool
	}{
		{"exists", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx"))), true},
		{"unknown", mock.Result(mock.RedisError("Unknown Index name")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "idx")).Return(tt.res)

			got, err := NewStoreForTest(c).IndexExists(context.Background(), "idx")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IndexExists = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{Fields: []db.IndexField{{Name: "f"}}}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "test"}); err == nil {
		t.Error("expected error for empty fields")
	}
}

func TestBuildCreateArgs_NoStopWords(t *testing.T) {
	args, err := buildCreateArgs(&db.IndexDefinition{
		Name:        "recall:idx:claim",
		Prefixes:    []string{"recall:claim:"},
		NoStopWords: true,
		Fields:      []db.IndexField{{Name: "tenant_id", Type: db.IndexFieldTag}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"recall:idx:claim", "ON", "HASH", "PREFIX", "1", "recall:claim:",
		"STOPWORDS", "0", "SCHEMA", "tenant_id", "TAG",
	}
	if !slices.Equal(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestBuildFieldArgs(t *testing.T) {
	tests := []struct {
		name  string
		field db.IndexField
		want  []string
	}{
		{"tag", db.IndexField{Name: "f", Type: db.IndexFieldTag, TagSeparator: ",", TagCaseSensitive: true},
			[]string{"f", "TAG", "SEPARATOR", ",", "CASESENSITIVE"}},
		{"sortable numeric", db.IndexField{Name: "date", Type: db.IndexFieldNumeric, Sortable: true},
			[]string{"date", "NUMERIC", "SORTABLE"}},
		{"weighted text", db.IndexField{Name: "title", Type: db.IndexFieldText, TextWeight: 2.5},
			[]string{"title", "TEXT", "WEIGHT", "2.5"}},
		{"unstemmed text", db.IndexField{Name: "title", Type: db.IndexFieldText, NoStem: true, TextWeight: 2},
			[]string{"title", "TEXT", "NOSTEM", "WEIGHT", "2"}},
		{"hnsw", db.IndexField{
			Name: "__vector", Alias: "vector", Type: db.IndexFieldVector,
			VectorDim: 4, VectorAlgo: db.VectorHNSW, VectorM: 16, VectorEFConstruct: 200,
		}, []string{
			"__vector", "AS", "vector", "VECTOR", "HNSW", "10",
			"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args, err := buildFieldArgs(&tc.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(args, tc.want) {
				t.Errorf("args = %v, want %v", args, tc.want)
			}
		})
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{Type: db.IndexFieldTag}); err == nil {
		t.Error("expected error for empty field name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero vector dim")
	}
}

// --- search.go tests ---

func tenantFilter(t *testing.T, tenant string) filter.Expression {
	t.Helper()
	c, err := filter.NewMatch("tenant_id", tenant)
	if err != nil {
		t.Fatal(err)
	}
	e, err := filter.NewExpression(c)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestSearchKNN_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "recall:idx:receipt" &&
				cmd[2] == "(@tenant_id:{t1})=>[KNN 5 @vector $BLOB]" &&
				slices.Contains(cmd, "__vector_score") &&
				strings.Contains(strings.Join(cmd, " "), "LIMIT 0 5")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("recall:receipt:r1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"),
				mock.RedisString("0.1"), // distance 0.1 → similarity 0.9
				mock.RedisString("title"),
				mock.RedisString("POWERCAT"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "recall:idx:receipt",
		Filters:      tenantFilter(t, "t1"),
		Vector:       []float32{0.1, 0.2},
		K:            5,
		ReturnFields: []string{"title"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Key != "recall:receipt:r1" || e.Fields["title"] != "POWERCAT" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Score < 0.899 || e.Score > 0.901 {
		t.Errorf("score = %f, want 0.9", e.Score)
	}
	if _, ok := e.Fields["__vector_score"]; ok {
		t.Error("__vector_score should be stripped from fields")
	}
}

func TestParseKNNResult_ClampsDistance(t *testing.T) {
	entry := func(dist string) rueidis.RedisMessage {
		return mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString(dist))
	}
	raw := []rueidis.RedisMessage{
		mock.RedisInt64(2),
		mock.RedisString("recall:receipt:r1"), entry("-0.0000001"),
		mock.RedisString("recall:receipt:r2"), entry("1.4"),
	}
	res, err := parseKNNResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Score != 1 {
		t.Errorf("negative distance score = %v, want 1", res.Entries[0].Score)
	}
	if res.Entries[1].Score != 0 {
		t.Errorf("distance past 1 score = %v, want 0", res.Entries[1].Score)
	}
}

func TestSearchKNN_NoFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 3 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 3})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Errorf("expected db.Error with FT.SEARCH op, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	tests := []*db.KNNQuery{
		{Vector: []float32{1}, K: 1},
		{IndexName: "idx", K: 1},
		{IndexName: "idx", Vector: []float32{1}},
	}
	for _, q := range tests {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("expected validation error for %+v", q)
		}
	}
}

func TestSearchText_BM25(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[2] == "@tenant_id:{t1} @title|__content:(powercat | kopi)" &&
				slices.Contains(cmd, "WITHSCORES")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("recall:receipt:r1"),
			mock.RedisString("3.5"),
			mock.RedisArray(mock.RedisString("title"), mock.RedisString("POWERCAT")),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "recall:idx:receipt",
		Fields:    []string{"title", "__content"},
		Terms:     []string{"powercat", "kopi"},
		Filters:   tenantFilter(t, "t1"),
		TopK:      10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Score != 3.5 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSearchText_Fuzzy(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" &&
				cmd[2] == "@title:(%starbuck%)" &&
				!slices.Contains(cmd, "WITHSCORES")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("recall:business_directory:b1"),
			mock.RedisArray(mock.RedisString("title"), mock.RedisString("Starbucks")),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchText(context.Background(), &db.TextQuery{
		IndexName: "idx",
		Fields:    []string{"title"},
		Terms:     []string{"starbuck"},
		Fuzzy:     true,
		TopK:      5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Fields["title"] != "Starbucks" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSearchText_Validation(t *testing.T) {
	s := &Store{}
	if _, err := s.SearchText(context.Background(), &db.TextQuery{IndexName: "idx", TopK: 1, Terms: []string{" "}}); err == nil {
		t.Error("expected error for blank terms")
	}
	if _, err := s.SearchText(context.Background(), &db.TextQuery{IndexName: "idx", Terms: []string{"x"}}); err == nil {
		t.Error("expected error for zero topK")
	}
}

func TestSearchList_SortedByDate(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			joined := strings.Join(cmd, " ")
			return cmd[0] == "FT.SEARCH" &&
				cmd[2] == "@tenant_id:{t1} @date:[100 200]" &&
				strings.Contains(joined, "SORTBY date DESC") &&
				strings.Contains(joined, "LIMIT 0 20")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("recall:receipt:r2"),
			mock.RedisArray(mock.RedisString("date"), mock.RedisString("150")),
			mock.RedisString("recall:receipt:r1"),
			mock.RedisArray(mock.RedisString("date"), mock.RedisString("120")),
		)))

	lo, hi := 100.0, 200.0
	r, _ := filter.NewRangeFilter(&lo, &hi)
	dateCond, _ := filter.NewRange("date", r)
	tenantCond, _ := filter.NewMatch("tenant_id", "t1")
	expr, _ := filter.NewExpression(tenantCond, dateCond)

	s := NewStoreForTest(c)
	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName: "idx",
		Filters:   expr,
		Limit:     20,
		SortBy:    "date",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || res.Entries[0].Key != "recall:receipt:r2" {
		t.Errorf("unexpected result: %+v", res)
	}
}

// --- query building ---

func TestBuildFilter(t *testing.T) {
	minV := 200.0
	r, _ := filter.NewRangeFilter(&minV, nil)
	amount, _ := filter.NewRange("amount", r)
	cats, _ := filter.NewMatch("category", "food & drink", "travel")
	tenant, _ := filter.NewMatch("tenant_id", "t-1")
	expr, _ := filter.NewExpression(tenant, amount, cats)

	got := buildFilter(expr)
	want := `@tenant_id:{t\-1} @amount:[200 +inf] @category:{food\ \&\ drink | travel}`
	if got != want {
		t.Errorf("buildFilter = %q, want %q", got, want)
	}
	if buildFilter(filter.Expression{}) != "" {
		t.Error("empty expression should produce empty filter")
	}
}

func TestBuildNumericFilter_Bounds(t *testing.T) {
	maxV := 1752710399.0
	r, _ := filter.NewRangeFilter(nil, &maxV)
	if got := buildNumericFilter("date", r); got != "@date:[-inf 1752710399]" {
		t.Errorf("got %q", got)
	}
}

func TestBuildTextQuery(t *testing.T) {
	tests := []struct {
		fields []string
		terms  []string
		fuzzy  bool
		want   string
	}{
		{[]string{"title", "__content"}, []string{"grab", "ride"}, false, "@title|__content:(grab | ride)"},
		{nil, []string{"McDonald's"}, false, `(McDonald\'s)`},
		{[]string{"title"}, []string{"kopi", ""}, true, "@title:(%kopi%)"},
		{[]string{"title"}, []string{" "}, false, ""},
	}
	for _, tt := range tests {
		if got := buildTextQuery(tt.fields, tt.terms, tt.fuzzy); got != tt.want {
			t.Errorf("buildTextQuery(%v, %v, %v) = %q, want %q", tt.fields, tt.terms, tt.fuzzy, got, tt.want)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery("a-b@c"); got != `a\-b\@c` {
		t.Errorf("escapeQuery = %q", got)
	}
}

func TestExpire_SubSecondTTLKeepsKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXPIRE", "k", "1", "NX")).
		Return(mock.Result(mock.RedisInt64(1)))

	if err := NewStoreForTest(c).Expire(context.Background(), "k", 300*time.Millisecond, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_RetriesUntilPong(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.ErrorResult(errors.New("connection refused"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
			Return(mock.Result(mock.RedisString("PONG"))),
	)

	if err := NewStoreForTest(c).WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_TimeoutKeepsLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	refused := errors.New("connection refused")
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(refused)).
		AnyTimes()

	err := NewStoreForTest(c).WaitForReady(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, refused) {
		t.Fatalf("expected last ping error, got %v", err)
	}
}
