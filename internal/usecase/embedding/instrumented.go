package embedding

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

var tracer = otel.Tracer("github.com/kailas-cloud/recall/internal/usecase/embedding")

// BudgetChecker enforces the provider token budget.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder guards query embedding with the token budget and
// reports per-search token usage. Provider-level metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// Embed refuses the call when the budget is spent, otherwise delegates and
// charges the tokens to the budget and to the request's EmbeddingUsage.
// Failures are logged at warn: the search falls back to keyword levels.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, span := tracer.Start(ctx, "embedding.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("embedding.provider", p.provider),
		attribute.String("embedding.model", p.model),
	)

	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			metrics.EmbeddingErrorsTotal.WithLabelValues(p.provider, p.model, "budget_exceeded").Inc()
			span.SetStatus(codes.Error, "budget exceeded")
			p.logger.Warn("Query embedding refused by token budget", zap.Error(err))
			return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		p.logger.Warn("Query embedding failed", zap.Duration("duration", elapsed), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}

	span.SetAttributes(attribute.Int("embedding.tokens", res.TotalTokens))
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	p.charge(res.TotalTokens)

	p.logger.Debug("Query embedded",
		zap.Duration("duration", elapsed),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// charge records tokens against the budget and publishes what is left.
// Cache hits cost nothing and leave the gauges untouched.
func (p *InstrumentedEmbedder) charge(tokens int) {
	if p.budget == nil || tokens <= 0 {
		return
	}
	p.budget.Record(int64(tokens))
	gauge := metrics.EmbeddingBudgetTokensRemaining
	gauge.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
	gauge.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
