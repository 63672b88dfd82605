package db

import (
	"errors"
	"fmt"
	"strings"
)

// DistanceMetric is the FT vector distance. Query embeddings are compared by cosine.
type DistanceMetric string

// DistanceCosine reports 1 - cosine similarity, in [0,2].
const DistanceCosine DistanceMetric = "COSINE"

// VectorAlgorithm is the ANN structure behind a vector field.
type VectorAlgorithm string

// Vector algorithms.
const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

// Field types.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

// IndexField describes one schema attribute.
type IndexField struct {
	Name     string
	Alias    string // AS alias in FT.CREATE SCHEMA
	Type     IndexFieldType
	Sortable bool

	// TEXT
	TextWeight float64 // 0 keeps the server default of 1
	NoStem     bool    // merchant and business names are matched as written

	// TAG
	TagSeparator     string
	TagCaseSensitive bool

	// VECTOR
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int
	VectorEFConstruct int
}

// key is the attribute name queries refer to.
func (f *IndexField) key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (f *IndexField) validate() error {
	switch {
	case f.Name == "":
		return errors.New("field name is required")
	case f.Type == IndexFieldVector && f.VectorDim <= 0:
		return fmt.Errorf("vector field %s requires positive DIM", f.key())
	case f.TextWeight < 0:
		return fmt.Errorf("text weight must not be negative: %s", f.key())
	case f.NoStem && f.Type != IndexFieldText:
		return fmt.Errorf("NOSTEM applies to TEXT fields only: %s", f.key())
	}
	return nil
}

// IndexDefinition is an FT index over HASH keys.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	// NoStopWords indexes every token. Short names such as "A&W" or
	// "The Store" consist of default stop words.
	NoStopWords bool
	Fields      []IndexField
}

// Validate checks names, attribute uniqueness and per-type options.
func (idx *IndexDefinition) Validate() error {
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if err := f.validate(); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if _, dup := seen[f.key()]; dup {
			return fmt.Errorf("duplicate field name: %s", f.key())
		}
		seen[f.key()] = struct{}{}
	}
	return nil
}

// IsValidIdentifier reports whether s is non-empty and matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_' || r == ':' || r == '-':
			return false
		}
		return true
	})
}
