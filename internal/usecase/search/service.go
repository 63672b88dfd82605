// Package search orchestrates one natural-language search: preprocessing,
// temporal and amount parsing, query embedding, retrieval through an ordered
// fallback chain, the tenant quota and aggregation.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/domain/tenant"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

var tracer = otel.Tracer("github.com/kailas-cloud/recall/internal/usecase/search")

// Pipeline states, logged at debug level as the search advances.
const (
	stateReceived     = "ReceivedQuery"
	statePreprocessed = "Preprocessed"
	stateTemporal     = "TemporalParsed"
	stateEmbedding    = "EmbeddingReady"
	stateRetrieved    = "Retrieved"
	stateLimitChecked = "LimitChecked"
	stateAggregated   = "Aggregated"
	stateResponded    = "Responded"
	stateFailedAuth   = "FailedAuth"
	stateFailedValid  = "FailedValidation"
	stateFailedAll    = "FailedAllFallbacks"
)

// Service runs searches.
type Service struct {
	retriever Retriever
	embedder  Embedder
	quota     QuotaChecker
	cfg       Config
	now       func() time.Time
}

// New creates a search orchestrator. quota may be nil to disable quota checks.
func New(retriever Retriever, embedder Embedder, quota QuotaChecker, cfg Config) *Service {
	return &Service{
		retriever: retriever,
		embedder:  embedder,
		quota:     quota,
		cfg:       cfg,
		now:       time.Now,
	}
}

// outcome is what the fallback chain produced.
type outcome struct {
	level     strategy.Name
	perSource map[source.Type][]score.Candidate
	fallbacks []strategy.Name
}

// Search runs req for the caller. Zero matches is a successful response.
func (s *Service) Search(ctx context.Context, id tenant.Identity, req *request.Request) (result.Response, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()

	log := logger.FromContext(ctx)
	log.Debug("Search state", zap.String("state", stateReceived))

	if !id.Valid() {
		log.Debug("Search state", zap.String("state", stateFailedAuth))
		return result.Response{}, domain.ErrUnauthorized
	}
	if req == nil {
		log.Debug("Search state", zap.String("state", stateFailedValid))
		return result.Response{}, fmt.Errorf("%w: empty request", domain.ErrValidation)
	}

	p := newPlan(id.ID, id.DefaultCurrency, req, s.cfg.Depth, start)
	log.Debug("Search state", zap.String("state", statePreprocessed), zap.String("query", p.query))

	log.Debug("Search state", zap.String("state", stateTemporal),
		zap.String("strategy", p.primary.String()),
		zap.Bool("temporal", p.parsed.Intent.IsTemporalQuery),
		zap.Strings("terms", p.semanticTerms),
	)
	if d := p.parsed.Dropped; d != nil {
		metrics.TemporalFilterDroppedTotal.WithLabelValues(p.parsed.Rule).Inc()
		log.Warn("Temporal filter dropped",
			zap.String("rule", p.parsed.Rule),
			zap.String("preset", d.Preset),
		)
	}
	span.SetAttributes(attribute.String("search.strategy", p.primary.String()))

	pipeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	s.embed(pipeCtx, p)
	log.Debug("Search state", zap.String("state", stateEmbedding),
		zap.Bool("has_embedding", p.embedding != nil))

	out, err := s.runChain(ctx, pipeCtx, p)
	if err != nil {
		fail(span, out.level, err)
		if errors.Is(err, domain.ErrAllFallbacksFailed) {
			log.Debug("Search state", zap.String("state", stateFailedAll))
		}
		return result.Response{}, err
	}
	log.Debug("Search state", zap.String("state", stateRetrieved),
		zap.String("level", out.level.String()),
		zap.Int("rows", count(out.perSource)),
	)

	if s.quota != nil {
		if err = s.quota.Consume(ctx, p.tenantID); err != nil {
			fail(span, out.level, err)
			return result.Response{}, fmt.Errorf("consume quota: %w", err)
		}
	}
	log.Debug("Search state", zap.String("state", stateLimitChecked))

	page, total := s.aggregate(ctx, req, out)
	log.Debug("Search state", zap.String("state", stateAggregated), zap.Int("total", total))

	resp := result.Response{
		Success:      true,
		Results:      make([]result.Item, 0, len(page)),
		TotalResults: total,
		SearchMetadata: result.Metadata{
			Strategy:        out.level,
			SourcesSearched: p.searchable(),
			FallbacksUsed:   out.fallbacks,
			DurationMs:      s.now().Sub(start).Milliseconds(),
		},
	}
	if resp.SearchMetadata.FallbacksUsed == nil {
		resp.SearchMetadata.FallbacksUsed = []strategy.Name{}
	}
	if out.level == strategy.RecentListing {
		resp.SearchMetadata.SourcesSearched = p.sources
	}
	for _, c := range page {
		resp.Results = append(resp.Results, item(c, req.IncludeMetadata()))
	}
	if req.IncludeMetadata() {
		resp.SearchMetadata.Temporal = temporalMeta(p)
		resp.SearchMetadata.Amount = amountMeta(p)
	}

	outcomeLabel := "ok"
	switch {
	case len(out.fallbacks) > 0:
		outcomeLabel = "degraded"
	case total == 0:
		outcomeLabel = "empty"
	}
	metrics.SearchRequestsTotal.WithLabelValues(out.level.String(), outcomeLabel).Inc()
	metrics.SearchDuration.WithLabelValues(out.level.String()).Observe(s.now().Sub(start).Seconds())

	log.Debug("Search state", zap.String("state", stateResponded),
		zap.String("level", out.level.String()),
		zap.Int("results", len(resp.Results)),
	)
	return resp, nil
}

// embed vectorizes the query unless the strategy needs no vector.
// A failure is kept on the plan so the chain can degrade around it.
func (s *Service) embed(ctx context.Context, p *plan) {
	if !p.primary.NeedsEmbedding() {
		domain.UsageFromContext(ctx).MarkSkipped()
		return
	}

	ctx, span := tracer.Start(ctx, "search.Embed")
	defer span.End()

	res, err := s.embedder.Embed(ctx, p.embedText())
	switch {
	case err != nil:
		p.embedErr = fmt.Errorf("embed query: %w", err)
	case len(res.Embedding) == 0:
		p.embedErr = fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingProviderError)
	default:
		p.embedding = res.Embedding
		return
	}
	span.RecordError(p.embedErr)
	span.SetStatus(codes.Error, "embedding failed")
	logger.FromContext(ctx).Warn("Query embedding failed, degrading", zap.Error(p.embedErr))
}

// runChain walks the levels until one yields rows. Once the pipeline deadline
// passes, every level but recent_listing is skipped and recent_listing runs
// under a fresh budget derived from the caller context.
func (s *Service) runChain(callerCtx, pipeCtx context.Context, p *plan) (outcome, error) {
	log := logger.FromContext(callerCtx)
	var (
		out       outcome
		lastErr   error
		succeeded bool
	)

	for i, l := range s.levels(p) {
		name := l.Name()
		if !l.Applicable(p) {
			metrics.SearchFallbacksTotal.WithLabelValues(name.String(), "skipped").Inc()
			continue
		}

		ctx := pipeCtx
		if timedOut(pipeCtx, callerCtx) {
			if name != strategy.RecentListing {
				metrics.SearchFallbacksTotal.WithLabelValues(name.String(), "skipped").Inc()
				continue
			}
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(callerCtx, s.cfg.FallbackTimeout)
			defer cancel()
			log.Warn("Search timed out, listing recent records")
		}

		if i > 0 {
			out.fallbacks = append(out.fallbacks, name)
		}

		perSource, err := s.attempt(ctx, l, p)
		if err != nil {
			if domain.IsFatal(err) {
				return out, err
			}
			lastErr = err
			metrics.SearchFallbacksTotal.WithLabelValues(name.String(), "error").Inc()
			log.Warn("Fallback level failed", zap.String("level", name.String()), zap.Error(err))
			continue
		}

		succeeded = true
		out.level = name
		out.perSource = perSource
		if count(perSource) > 0 {
			metrics.SearchFallbacksTotal.WithLabelValues(name.String(), "hit").Inc()
			return out, nil
		}
		metrics.SearchFallbacksTotal.WithLabelValues(name.String(), "empty").Inc()
	}

	if !succeeded {
		return out, fmt.Errorf("%w: %w", domain.ErrAllFallbacksFailed, lastErr)
	}
	return out, nil
}

func (s *Service) attempt(ctx context.Context, l Level, p *plan) (map[source.Type][]score.Candidate, error) {
	ctx, span := tracer.Start(ctx, "search.Attempt")
	defer span.End()
	span.SetAttributes(attribute.String("search.level", l.Name().String()))

	perSource, err := l.Attempt(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "level failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.rows", count(perSource)))
	return perSource, nil
}

func timedOut(pipeCtx, callerCtx context.Context) bool {
	return errors.Is(pipeCtx.Err(), context.DeadlineExceeded) && callerCtx.Err() == nil
}

func (s *Service) aggregate(ctx context.Context, req *request.Request, out outcome) ([]score.Candidate, int) {
	_, span := tracer.Start(ctx, "search.Aggregate")
	defer span.End()
	return aggregate(out.perSource, req.AggregationMode(), priorityOf(s.cfg.Priority, req.Sources()),
		req.Offset(), req.Limit())
}

func fail(span trace.Span, level strategy.Name, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	outcomeLabel := "error"
	if errors.Is(err, domain.ErrQuotaExceeded) {
		outcomeLabel = "quota_exceeded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(level.String(), outcomeLabel).Inc()
}

func item(c score.Candidate, withMetadata bool) result.Item {
	it := result.Item{
		ID:         c.Record.ID,
		SourceType: c.Record.Type,
		Title:      c.Record.Title,
		Snippet:    snippet(c.Record),
		Similarity: c.CombinedScore,
		CreatedAt:  c.Record.CreatedAt,
	}
	if withMetadata {
		it.Metadata = c.Record.Metadata
	}
	return it
}

func temporalMeta(p *plan) *result.Temporal {
	in := p.parsed.Intent
	if !in.IsTemporalQuery {
		return nil
	}
	t := &result.Temporal{
		Routing:       in.RoutingStrategy,
		SemanticTerms: in.SemanticTerms,
		Confidence:    p.parsed.Confidence,
	}
	dr := p.parsed.DateRange
	if dr == nil {
		dr = p.parsed.Dropped
		t.Dropped = true
	}
	if dr != nil {
		t.Preset, t.Start, t.End = dr.Preset, dr.Start, dr.End
	}
	return t
}

func amountMeta(p *plan) *result.Amount {
	if p.amount == nil {
		return nil
	}
	return &result.Amount{Min: p.amount.Min, Max: p.amount.Max, Currency: p.amount.Currency}
}
