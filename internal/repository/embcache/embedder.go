// Package embcache memoizes query embeddings in the key-value store.
// Repeated searches ("coffee last week" every Monday) skip the provider call.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config scopes cache entries. Model and Dimensions are part of every key, so
// switching either never serves vectors of the old shape.
type Config struct {
	KeyPrefix  string
	Model      string
	Dimensions int // 0 accepts any cached length
	TTL        time.Duration
	// Lookups counts results by label "result" (hit/miss). May be nil.
	Lookups *prometheus.CounterVec
}

// CachedEmbedder serves query vectors from the store before asking inner.
// A hit reports zero tokens. Store failures degrade to a miss.
type CachedEmbedder struct {
	inner     domain.Embedder
	store     store
	namespace string
	dims      int
	ttl       time.Duration
	lookups   *prometheus.CounterVec
	logger    *zap.Logger
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, cfg Config, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:     inner,
		store:     s,
		namespace: cfg.KeyPrefix + "emb_cache:" + cfg.Model + ":" + strconv.Itoa(cfg.Dimensions) + ":",
		dims:      cfg.Dimensions,
		ttl:       cfg.TTL,
		lookups:   cfg.Lookups,
		logger:    logger,
	}
}

// Embed implements domain.Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.lookup(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// cacheKey hashes the query with whitespace collapsed, so "kopi  last week"
// and "kopi last week" share an entry. Case is kept: the model sees it.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return c.namespace + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	vec := db.DecodeVector(string(data))
	if vec == nil || (c.dims > 0 && len(vec) != c.dims) {
		c.logger.Warn("Discarding malformed cached embedding",
			zap.String("key", key), zap.Int("bytes", len(data)))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
