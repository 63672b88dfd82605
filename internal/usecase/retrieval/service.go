// Package retrieval implements hybrid candidate retrieval: vector, keyword and
// trigram channels merged per record, blended by weight and kept by a union of
// per-channel floors.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/scope"
	"github.com/kailas-cloud/recall/internal/domain/search/trigram"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// DefaultDepth is the per-channel candidate pool size of one source.
const DefaultDepth = 50

// Query is one retrieval request. Hard filters (dates, amounts, categories)
// are applied inside the index query, never as ranking signals.
type Query struct {
	TenantID string
	// Text is the query text trigram similarity is measured against.
	Text string
	// Terms feed the keyword and fuzzy channels.
	Terms     []string
	Embedding []float32
	Sources   []source.Type

	From       *time.Time
	To         *time.Time
	MinAmount  *float64
	MaxAmount  *float64
	Currency   string
	Categories []string

	Channels score.Channels
	Weights  score.Weights
	Floors   score.Floors
	// Listing returns scope members newest first without scoring.
	Listing bool
	Depth   int
}

// HasAmount reports whether the query carries an amount bound.
func (q *Query) HasAmount() bool { return q.MinAmount != nil || q.MaxAmount != nil }

// Searchable returns the sources a query actually runs against: with an
// amount bound, sources that carry no amount are skipped.
func Searchable(sources []source.Type, hasAmount bool) []source.Type {
	if !hasAmount {
		return sources
	}
	out := make([]source.Type, 0, len(sources))
	for _, t := range sources {
		if t.HasAmount() {
			out = append(out, t)
		}
	}
	return out
}

// Service runs retrieval queries against the repository.
type Service struct {
	repo Repository
}

// New creates a retrieval service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Retrieve returns ranked candidates per searched source.
// Sources skipped by an amount bound are absent from the result.
func (s *Service) Retrieve(ctx context.Context, q Query) (map[source.Type][]score.Candidate, error) {
	if err := validate(&q); err != nil {
		return nil, err
	}
	if q.Depth <= 0 {
		q.Depth = DefaultDepth
	}

	sources := Searchable(q.Sources, q.HasAmount())
	perSource := make([][]score.Candidate, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range sources {
		g.Go(func() error {
			cs, err := s.retrieveSource(gctx, &q, t)
			if err != nil {
				return fmt.Errorf("source %s: %w", t, err)
			}
			perSource[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrTenantRequired) || errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	out := make(map[source.Type][]score.Candidate, len(sources))
	for i, t := range sources {
		out[t] = perSource[i]
	}
	return out, nil
}

func validate(q *Query) error {
	if strings.TrimSpace(q.TenantID) == "" {
		return domain.ErrTenantRequired
	}
	if len(q.Sources) == 0 {
		return fmt.Errorf("%w: no sources to search", domain.ErrValidation)
	}
	if q.Listing {
		return nil
	}
	if !q.Channels.Any() {
		return fmt.Errorf("%w: no retrieval channel enabled", domain.ErrValidation)
	}
	if q.Channels.Vector && len(q.Embedding) == 0 {
		return domain.ErrEmbeddingRequired
	}
	if err := q.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := q.Floors.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

func (q *Query) scope(t source.Type) scope.Scope {
	return scope.Scope{
		TenantID:   q.TenantID,
		Source:     t,
		From:       q.From,
		To:         q.To,
		MinAmount:  q.MinAmount,
		MaxAmount:  q.MaxAmount,
		Currency:   q.Currency,
		Categories: q.Categories,
	}
}

func (s *Service) retrieveSource(ctx context.Context, q *Query, t source.Type) ([]score.Candidate, error) {
	sc := q.scope(t)

	if q.Listing {
		hits, err := s.repo.List(ctx, sc, 0, q.Depth)
		if err != nil {
			return nil, err
		}
		out := make([]score.Candidate, 0, len(hits))
		for _, h := range hits {
			if owned(ctx, q.TenantID, &h.Record) {
				out = append(out, score.Candidate{Record: h.Record})
			}
		}
		return out, nil
	}

	m := newMerger()

	if q.Channels.Vector {
		hits, err := s.repo.VectorSearch(ctx, sc, q.Embedding, q.Depth)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			m.add(h.Record).VectorScore = score.Clamp(h.Score)
		}
	}

	if q.Channels.Keyword && len(q.Terms) > 0 {
		hits, err := s.repo.KeywordSearch(ctx, sc, q.Terms, q.Depth)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			m.add(h.Record).KeywordScore = score.SaturateKeyword(h.Score)
		}
	}

	if q.Channels.Trigram && len(q.Terms) > 0 {
		hits, err := s.repo.FuzzySearch(ctx, sc, q.Terms, q.Depth)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			m.add(h.Record)
		}
	}

	out := make([]score.Candidate, 0, len(m.order))
	for _, c := range m.candidates() {
		if !owned(ctx, q.TenantID, &c.Record) {
			continue
		}
		if q.Channels.Vector && c.VectorScore == 0 && len(c.Record.Vector) > 0 {
			c.VectorScore = score.Cosine(q.Embedding, c.Record.Vector)
		}
		if q.Channels.Trigram && q.Text != "" {
			c.TrigramScore = trigram.Score(q.Text, c.Record.Title, c.Record.Content)
		}
		if !q.Floors.Admits(c, q.Channels) {
			continue
		}
		c.CombinedScore = q.Weights.Combine(c.VectorScore, c.KeywordScore, c.TrigramScore)
		c.Record.Vector = nil
		out = append(out, *c)
	}

	score.Sort(out)
	return out, nil
}

// owned is the last line of tenant isolation: the index filter already scopes
// by tenant, so a foreign row here means the index or filter is broken.
func owned(ctx context.Context, tenantID string, rec *source.Record) bool {
	if rec.TenantID == tenantID {
		return true
	}
	metrics.TenantMismatchDroppedTotal.Inc()
	logger.FromContext(ctx).Error("Dropped row owned by another tenant",
		zap.String("source", rec.Type.String()),
		zap.String("record_id", rec.ID),
	)
	return false
}

// merger collects channel hits per record id, keeping first-seen order.
type merger struct {
	byID  map[string]*score.Candidate
	order []string
}

func newMerger() *merger {
	return &merger{byID: make(map[string]*score.Candidate)}
}

func (m *merger) add(rec source.Record) *score.Candidate {
	if c, ok := m.byID[rec.ID]; ok {
		if len(c.Record.Vector) == 0 && len(rec.Vector) > 0 {
			c.Record.Vector = rec.Vector
		}
		return c
	}
	c := &score.Candidate{Record: rec}
	m.byID[rec.ID] = c
	m.order = append(m.order, rec.ID)
	return c
}

func (m *merger) candidates() []*score.Candidate {
	out := make([]*score.Candidate, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}
