package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions over HASH keys.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// NoStopWords disables the stop-word list so every token is indexed.
func (b *IndexBuilder) NoStopWords() *IndexBuilder {
	b.def.NoStopWords = true
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

// SortableNumeric adds a NUMERIC SORTABLE field usable with SORTBY.
func (b *IndexBuilder) SortableNumeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric, Sortable: true})
}

// Tag adds a TAG field with custom separator and case sensitivity.
func (b *IndexBuilder) Tag(name, separator string, caseSensitive bool) *IndexBuilder {
	return b.add(IndexField{
		Name:             name,
		Type:             IndexFieldTag,
		TagSeparator:     separator,
		TagCaseSensitive: caseSensitive,
	})
}

// Text adds a TEXT field. weight <= 0 keeps the server default.
func (b *IndexBuilder) Text(name string, weight float64) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText, TextWeight: weight})
}

// TextNoStem adds a TEXT field matched without stemming.
func (b *IndexBuilder) TextNoStem(name string, weight float64) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText, TextWeight: weight, NoStem: true})
}

// VectorHNSW adds a VECTOR field with the HNSW algorithm under alias.
func (b *IndexBuilder) VectorHNSW(name, alias string, dim int, distance DistanceMetric, m, efConstruct int) *IndexBuilder {
	return b.add(IndexField{
		Name:              name,
		Alias:             alias,
		Type:              IndexFieldVector,
		VectorAlgo:        VectorHNSW,
		VectorDim:         dim,
		VectorDistance:    distance,
		VectorM:           m,
		VectorEFConstruct: efConstruct,
	})
}

// VectorFlat adds a VECTOR field with the FLAT algorithm under alias.
func (b *IndexBuilder) VectorFlat(name, alias string, dim int, distance DistanceMetric) *IndexBuilder {
	return b.add(IndexField{
		Name:           name,
		Alias:          alias,
		Type:           IndexFieldVector,
		VectorAlgo:     VectorFlat,
		VectorDim:      dim,
		VectorDistance: distance,
	})
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	if idx.NoStopWords {
		parts = append(parts, "STOPWORDS", "0")
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldText:
			parts = append(parts, "TEXT")
			if f.NoStem {
				parts = append(parts, "NOSTEM")
			}
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo))
		}
		if f.Sortable {
			parts = append(parts, "SORTABLE")
		}
	}
	return strings.Join(parts, " ")
}
