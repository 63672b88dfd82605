// Package quota enforces the per-tenant monthly search allowance.
package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Action defines behavior when a tenant is over its limit.
type Action string

const (
	// ActionReject fails the search with domain.ErrQuotaExceeded.
	ActionReject Action = "reject"
	// ActionWarn logs and lets the search through.
	ActionWarn Action = "warn"
)

// Counter persists monthly search counts.
type Counter interface {
	Incr(ctx context.Context, tenantID string, at time.Time) (int64, error)
	Used(ctx context.Context, tenantID string, at time.Time) (int64, error)
}

// Config holds quota limits. Zero limits mean unlimited.
type Config struct {
	MonthlyLimit int64
	Action       Action
	// Overrides replace MonthlyLimit per tenant id.
	Overrides map[string]int64
}

// Checker charges searches against tenant quotas.
type Checker struct {
	counter Counter
	cfg     Config
	now     func() time.Time
}

// NewChecker creates a quota checker.
func NewChecker(counter Counter, cfg Config) *Checker {
	if cfg.Action == "" {
		cfg.Action = ActionReject
	}
	return &Checker{counter: counter, cfg: cfg, now: time.Now}
}

// Limit returns the monthly allowance of tenantID. Zero means unlimited.
func (c *Checker) Limit(tenantID string) int64 {
	if n, ok := c.cfg.Overrides[tenantID]; ok {
		return n
	}
	return c.cfg.MonthlyLimit
}

// Consume counts one search. Counter failures let the search through.
func (c *Checker) Consume(ctx context.Context, tenantID string) error {
	limit := c.Limit(tenantID)
	if limit <= 0 {
		return nil
	}

	log := logger.FromContext(ctx)
	n, err := c.counter.Incr(ctx, tenantID, c.now().UTC())
	if err != nil {
		log.Warn("Quota counter unavailable, allowing search", zap.Error(err))
		return nil
	}
	if n <= limit {
		return nil
	}

	if c.cfg.Action == ActionWarn {
		log.Warn("Search quota exceeded",
			zap.Int64("used", n),
			zap.Int64("limit", limit),
		)
		return nil
	}
	metrics.QuotaRejectionsTotal.Inc()
	return fmt.Errorf("%w: %d searches per month", domain.ErrQuotaExceeded, limit)
}

// Used returns the searches counted for tenantID this month.
func (c *Checker) Used(ctx context.Context, tenantID string) (int64, error) {
	n, err := c.counter.Used(ctx, tenantID, c.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return n, nil
}
