// Package index creates the per-source FT indexes the retrieval layer queries.
// Records are written by the indexing pipeline; this package only owns the schema.
package index

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/source"
)

// store is the consumer interface for index management (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds HNSW graph parameters. Zero values keep server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the vector layout shared by every source index.
type Config struct {
	KeyPrefix  string
	Dimensions int
	Distance   db.DistanceMetric
	Flat       bool
	HNSW       HNSWConfig
}

// Bootstrapper ensures source indexes exist.
type Bootstrapper struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates an index bootstrapper.
func New(s store, cfg Config, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{store: s, cfg: cfg, logger: logger}
}

// Ensure creates the index of every given source that does not exist yet.
// An index created concurrently by another instance is not an error.
func (b *Bootstrapper) Ensure(ctx context.Context, sources []source.Type) error {
	for _, t := range sources {
		def, err := Definition(t, b.cfg)
		if err != nil {
			return fmt.Errorf("index definition %s: %w", t, err)
		}

		exists, err := b.store.IndexExists(ctx, def.Name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", def.Name, err)
		}
		if exists {
			b.logger.Debug("Index already present", zap.String("index", def.Name))
			continue
		}

		if err := b.store.CreateIndex(ctx, def); err != nil {
			if errors.Is(err, db.ErrIndexExists) {
				continue
			}
			return fmt.Errorf("create index %s: %w", def.Name, err)
		}
		b.logger.Info("Index created", zap.String("index", def.Name), zap.Stringer("schema", def))
	}
	return nil
}

// Definition builds the FT index definition of a source.
func Definition(t source.Type, cfg Config) (*db.IndexDefinition, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown source %q", t)
	}

	b := db.NewIndex(t.IndexName(cfg.KeyPrefix)).
		Prefix(t.KeyPrefix(cfg.KeyPrefix)).
		NoStopWords().
		Tag(source.FieldTenant, "", true).
		TextNoStem(source.FieldTitle, 2).
		Text(source.FieldContent, 0).
		SortableNumeric(source.FieldDate).
		SortableNumeric(source.FieldCreatedAt)

	if t.HasAmount() {
		b.Numeric(source.FieldAmount).Tag(source.FieldCurrency, "", false)
	}
	if t != source.Category {
		b.Tag(source.FieldCategory, "", false)
	}
	if t == source.BusinessDirectory {
		b.Tag("keywords", ",", false)
	}

	distance := cfg.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}
	if cfg.Flat {
		b.VectorFlat(source.FieldVector, "vector", cfg.Dimensions, distance)
	} else {
		b.VectorHNSW(source.FieldVector, "vector", cfg.Dimensions, distance, cfg.HNSW.M, cfg.HNSW.EFConstruct)
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return def, nil
}
