// Package redisstore provides a Redis-backed session store for authkit.
// Keys are namespaced per client scope so one browser's state cannot leak
// into another's.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	authkit "github.com/goliatone/go-authkit"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "authkit"

// Stores is a redis-backed authkit.SessionStores factory.
type Stores struct {
	redis  redis.UniversalClient
	prefix string
}

// Option configures Stores.
type Option func(*Stores)

// WithPrefix overrides the Redis key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Stores) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a Stores factory over the given Redis client.
func New(client redis.UniversalClient, opts ...Option) *Stores {
	s := &Stores{
		redis:  client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// ForClient returns the store scoped to a single client ID.
func (s *Stores) ForClient(clientID string) authkit.SessionStore {
	return &clientStore{
		redis:  s.redis,
		prefix: s.prefix,
		client: normalizeClientID(clientID),
	}
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Stores) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func normalizeClientID(clientID string) string {
	if clientID == "" {
		return "0"
	}
	return clientID
}

type clientStore struct {
	redis  redis.UniversalClient
	prefix string
	client string
}

func (s *clientStore) key(name string) string {
	return s.prefix + ":" + s.client + ":" + name
}

// indexKey tracks every key written for this client scope so Clear can
// remove them without a SCAN.
func (s *clientStore) indexKey() string {
	return s.prefix + ":idx:" + s.client
}

func (s *clientStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (s *clientStore) Set(ctx context.Context, name string, value []byte, ttl time.Duration) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(name), value, ttl)
		pipe.SAdd(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *clientStore) Delete(ctx context.Context, name string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(name))
		pipe.SRem(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *clientStore) Clear(ctx context.Context) error {
	names, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, s.key(name))
	}
	keys = append(keys, s.indexKey())

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
