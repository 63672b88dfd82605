// Package quota persists per-tenant monthly search counters.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
)

// store is the consumer interface for quota counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store counts searches per tenant per calendar month (UTC).
type Store struct {
	store     store
	keyPrefix string
	ttl       time.Duration
}

// New creates a quota store. ttl bounds how long a month's counter outlives the month.
func New(s store, keyPrefix string, ttl time.Duration) *Store {
	return &Store{store: s, keyPrefix: keyPrefix, ttl: ttl}
}

// Incr counts one search for tenantID in the month containing at and
// returns the month's total including it.
func (s *Store) Incr(ctx context.Context, tenantID string, at time.Time) (int64, error) {
	key := s.key(tenantID, at)
	n, err := s.store.IncrBy(ctx, key, 1)
	if err != nil {
		return 0, fmt.Errorf("quota INCRBY %s: %w", key, err)
	}
	if n == 1 {
		if err := s.store.Expire(ctx, key, s.ttl, true); err != nil {
			return n, fmt.Errorf("quota EXPIRE %s: %w", key, err)
		}
	}
	return n, nil
}

// Used returns the searches counted for tenantID in the month containing at.
func (s *Store) Used(ctx context.Context, tenantID string, at time.Time) (int64, error) {
	key := s.key(tenantID, at)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("quota GET %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quota GET %s parse: %w", key, err)
	}
	return n, nil
}

func (s *Store) key(tenantID string, at time.Time) string {
	return fmt.Sprintf("%squota:%s:%s", s.keyPrefix, tenantID, at.UTC().Format("2006-01"))
}
