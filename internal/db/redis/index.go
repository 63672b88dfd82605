package redis

import (
	"cmp"
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/recall/internal/db"
)

// CreateIndex runs FT.CREATE for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// IndexExists probes an index with FT.INFO. Redis 8 answers "Unknown index name"
// for a missing index; older modules say "no such index".
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, "unknown index name"), isRedisErr(err, "no such index"):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// buildCreateArgs renders everything after FT.CREATE.
func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}
	if n := len(idx.Prefixes); n > 0 {
		args = append(append(args, "PREFIX", strconv.Itoa(n)), idx.Prefixes...)
	}
	if idx.NoStopWords {
		args = append(args, "STOPWORDS", "0")
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fa, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldText:
		args = append(args, "TEXT")
		if f.NoStem {
			args = append(args, "NOSTEM")
		}
		if f.TextWeight > 0 {
			args = append(args, "WEIGHT", strconv.FormatFloat(f.TextWeight, 'f', -1, 64))
		}
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	case db.IndexFieldVector:
		va, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		// Vector fields cannot be SORTABLE.
		return append(args, va...), nil
	default:
		return nil, errors.New("unknown field type")
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

// buildVectorFieldArgs renders "VECTOR <algo> <nargs> <attrs...>". FLOAT32 matches db.EncodeVector.
func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := cmp.Or(f.VectorAlgo, db.VectorHNSW)
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(cmp.Or(f.VectorDistance, db.DistanceCosine)),
	}
	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...), nil
}
