package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
)

// Get returns the raw value of key, or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case err == nil:
		return data, nil
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	default:
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
}

// SetWithTTL stores value under key with an expiry (SET EX).
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy adds val to the integer at key and returns the new value.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) (int64, error) {
	n, err := s.do(ctx, s.b().Incrby().Key(key).Increment(val).Build()).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return n, nil
}

// Expire sets a TTL on key, rounded down to whole seconds with a floor of one:
// EXPIRE 0 would delete the counter. With nx the TTL is only set when the key
// has none, so the first write of a period fixes its expiry.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := s.b().Expire().Key(key).Seconds(max(1, int64(ttl/time.Second)))
	var cmd rueidis.Completed
	if nx {
		cmd = secs.Nx().Build()
	} else {
		cmd = secs.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
