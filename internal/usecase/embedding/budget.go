package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
)

// BudgetAction is what happens to a query embedding once a limit is reached.
type BudgetAction string

const (
	// BudgetActionWarn logs once per period and keeps embedding.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject refuses the embedding; the search falls back to keyword levels.
	BudgetActionReject BudgetAction = "reject"
)

// Budget periods, matching the persistence layer.
const (
	periodDaily   = "daily"
	periodMonthly = "monthly"
)

const persistTimeout = 2 * time.Second

// BudgetStore persists token counters per provider and period.
type BudgetStore interface {
	Add(ctx context.Context, provider, period string, at time.Time, tokens int64) error
	Used(ctx context.Context, provider, period string, at time.Time) (int64, error)
}

// window is one budget period: a calendar day or month in UTC.
type window struct {
	name     string
	limit    int64 // 0 = unlimited
	used     int64
	start    time.Time
	truncate func(time.Time) time.Time
	warned   bool
}

func (w *window) roll(now time.Time) {
	if start := w.truncate(now); start.After(w.start) {
		w.start, w.used, w.warned = start, 0, false
	}
}

func (w *window) spent() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(0, w.limit-w.used)
}

// BudgetTracker caps the tokens spent on query embeddings per day and month.
// Check is served from memory; Record writes through to the store when one
// is attached so counters survive restarts and are shared by replicas on load.
type BudgetTracker struct {
	mu       sync.Mutex
	daily    window
	monthly  window
	action   BudgetAction
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker. A zero limit is unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BudgetTracker{
		daily:    window{name: periodDaily, limit: dailyLimit, truncate: startOfDay},
		monthly:  window{name: periodMonthly, limit: monthlyLimit, truncate: startOfMonth},
		action:   action,
		provider: provider,
		now:      time.Now,
		logger:   logger.With(zap.String("provider", provider)),
	}
	b.resetAt(b.now().UTC())
	return b
}

// WithStore attaches persistence and loads the current period counters.
// Load failures are logged and start the period from zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now().UTC()
	for _, w := range b.windows() {
		used, err := store.Used(ctx, b.provider, w.name, now)
		if err != nil {
			b.logger.Warn("Failed to load embedding budget", zap.String("period", w.name), zap.Error(err))
			continue
		}
		w.used = used
	}
	b.logger.Info("Embedding budget loaded",
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

// Check reports whether another query may be embedded.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()

	for _, w := range b.windows() {
		if !w.spent() {
			continue
		}
		if b.action == BudgetActionReject {
			return fmt.Errorf("%s token budget of %d spent: %w", w.name, w.limit, domain.ErrEmbeddingQuotaExceeded)
		}
		if !w.warned {
			w.warned = true
			b.logger.Warn("Embedding token budget exceeded",
				zap.String("period", w.name),
				zap.Int64("used", w.used),
				zap.Int64("limit", w.limit),
			)
		}
	}
	return nil
}

// Record charges tokens to both periods, then persists them.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.roll()
	b.daily.used += tokens
	b.monthly.used += tokens
	store, now := b.store, b.now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request: a finished search must not cut the write short.
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, period := range []string{periodDaily, periodMonthly} {
		if err := store.Add(ctx, b.provider, period, now, tokens); err != nil {
			b.logger.Warn("Failed to persist embedding budget", zap.String("period", period), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	return b.read(func() int64 { return b.daily.remaining() })
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	return b.read(func() int64 { return b.monthly.remaining() })
}

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	return b.read(func() int64 { return b.daily.used })
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	return b.read(func() int64 { return b.monthly.used })
}

// Exhausted reports whether either limit has been reached.
func (b *BudgetTracker) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.daily.spent() || b.monthly.spent()
}

// DailyLimit returns the daily token cap (0 if unlimited).
func (b *BudgetTracker) DailyLimit() int64 { return b.daily.limit }

// MonthlyLimit returns the monthly token cap (0 if unlimited).
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthly.limit }

func (b *BudgetTracker) read(f func() int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return f()
}

func (b *BudgetTracker) windows() []*window { return []*window{&b.daily, &b.monthly} }

// roll zeroes the counters of periods that ended. Callers hold mu.
func (b *BudgetTracker) roll() {
	now := b.now().UTC()
	b.daily.roll(now)
	b.monthly.roll(now)
}

func (b *BudgetTracker) resetAt(now time.Time) {
	b.daily.start = startOfDay(now)
	b.monthly.start = startOfMonth(now)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
