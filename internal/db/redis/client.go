// Package redis implements the db facade on Redis 8 with the query engine
// (FT.CREATE, FT.SEARCH) through rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	clientName    = "recall"
	readyInterval = 100 * time.Millisecond
)

// Config holds connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// ConnWriteTimeout bounds a single write on the connection. Zero keeps the rueidis default.
	ConnWriteTimeout time.Duration
}

// Store is a read-mostly client: search queries, counters and the query embedding cache.
type Store struct {
	client rueidis.Client
}

// NewStore connects to the configured nodes.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		ClientName:  clientName,
		// Search results change with every indexing run; client-side caching never pays off.
		DisableCache: true,
		// FT.SEARCH replies are parsed as RESP2 arrays.
		AlwaysRESP2:      true,
		ConnWriteTimeout: cfg.ConnWriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", strings.Join(cfg.Addrs, ","), err)
	}
	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings until the store answers or timeout elapses.
// The returned error carries the last ping failure.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		if lastErr = s.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, lastErr)
		case <-time.After(readyInterval):
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server error whose message contains substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	return ok && strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
