package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
)

// Budget periods.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store persists embedding token counters per provider and period
// (INCRBY + EXPIRE NX, GET).
type Store struct {
	store     store
	keyPrefix string
	dailyTTL  time.Duration
	monthTTL  time.Duration
}

// New creates a budget store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, keyPrefix string, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:     s,
		keyPrefix: keyPrefix,
		dailyTTL:  dailyTTL,
		monthTTL:  monthTTL,
	}
}

// Add atomically adds tokens to the provider's counter for the period containing at.
func (s *Store) Add(ctx context.Context, provider, period string, at time.Time, tokens int64) error {
	key, ttl, err := s.key(provider, period, at)
	if err != nil {
		return err
	}
	if _, err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	// NX: the first write of a period fixes its expiry.
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Used returns the tokens recorded for the period containing at. A missing key is 0.
func (s *Store) Used(ctx context.Context, provider, period string, at time.Time) (int64, error) {
	key, _, err := s.key(provider, period, at)
	if err != nil {
		return 0, err
	}
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) key(provider, period string, at time.Time) (string, time.Duration, error) {
	at = at.UTC()
	switch period {
	case PeriodDaily:
		return fmt.Sprintf("%sbudget:%s:daily:%s", s.keyPrefix, provider, at.Format("2006-01-02")), s.dailyTTL, nil
	case PeriodMonthly:
		return fmt.Sprintf("%sbudget:%s:monthly:%s", s.keyPrefix, provider, at.Format("2006-01")), s.monthTTL, nil
	default:
		return "", 0, fmt.Errorf("unknown budget period %q", period)
	}
}
