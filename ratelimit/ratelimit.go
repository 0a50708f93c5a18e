// Package ratelimit counts requests per client in fixed windows shared
// through Redis.
package ratelimit

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "ratelimit"

// RedisStore satisfies echo's middleware.RateLimiterStore. Every instance
// sharing the Redis server sees the same counters.
type RedisStore struct {
	client  *redis.Client
	limit   int64
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

func NewRedisStore(client *redis.Client, limit int, window time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		limit:   int64(limit),
		window:  window,
		timeout: 500 * time.Millisecond,
		now:     time.Now,
	}
}

func (s *RedisStore) key(identifier string) string {
	slot := s.now().UnixNano() / int64(s.window)
	return fmt.Sprintf("%s:%s:%d", keyPrefix, identifier, slot)
}

// Allow increments the caller's counter for the current window and reports
// whether it is still within the limit.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := s.key(identifier)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= s.limit, nil
}

// ParseRedisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" connection string.
func ParseRedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, fmt.Errorf("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" || strings.Contains(parts[0], "=") {
		return nil, fmt.Errorf("invalid redis connection string")
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}

// Store is the subset of echo's RateLimiterStore used here.
type Store interface {
	Allow(identifier string) (bool, error)
}

// FailOpen lets requests through when the underlying store errors, so a
// Redis outage degrades to no limiting instead of rejecting everyone.
type FailOpen struct {
	next   Store
	logger *log.Logger
}

func NewFailOpen(next Store, logger *log.Logger) *FailOpen {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &FailOpen{next: next, logger: logger}
}

func (f *FailOpen) Allow(identifier string) (bool, error) {
	ok, err := f.next.Allow(identifier)
	if err != nil {
		f.logger.WithError(err).WithField("client", identifier).Warn("ratelimit.store.failed")
		return true, nil
	}
	return ok, nil
}
