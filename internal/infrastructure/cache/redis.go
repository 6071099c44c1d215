package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"job-sync/internal/config"
	"job-sync/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	JobsListPrefix   = "jobs:list:"
	sourceLockPrefix = "jobs:sync:lock:"
	defaultTTL       = 10 * time.Minute
	defaultLockTTL   = 6 * time.Minute
)

// releaseScript deletes the lock only while it still carries our token, so an
// expired holder never frees a lock another process has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a best-effort cache. Every method degrades to a no-op when the
// server is unreachable at startup.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger

	warnedUnavailable atomic.Bool
}

func NewRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		log.Warn("redis unavailable, bypassing cache", zap.String("addr", cfg.Addr()), zap.Error(err))
		_ = client.Close()
		return &Redis{ttl: cfg.TTL, log: log}
	}
	log.Info("redis connected", zap.String("addr", cfg.Addr()))
	return NewFromClient(client, cfg.TTL, log)
}

func NewFromClient(client *redis.Client, ttl time.Duration, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl, log: log}
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn("redis error, bypassing cache", zap.Error(err))
	}
}

func (r *Redis) Available() bool { return !r.isUnavailable() }

func (r *Redis) Ping(ctx context.Context) error {
	if r.isUnavailable() {
		return errors.New("redis unavailable")
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.isUnavailable() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if r.isUnavailable() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.isUnavailable() {
		return nil
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.isUnavailable() {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// DeleteByPattern removes every key matching a SCAN pattern and reports how
// many were deleted.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if r.isUnavailable() {
		return 0, nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, nil
	}
	n := 0
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if err := r.client.Del(ctx, k).Err(); err != nil {
			r.log.Warn("redis delete failed", zap.String("key", k), zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		n++
	}
	if err := iter.Err(); err != nil {
		r.warnUnavailableOnce(err)
		return n, err
	}
	return n, nil
}

// InvalidateJobLists drops every cached job listing page.
func (r *Redis) InvalidateJobLists(ctx context.Context) (int, error) {
	return r.DeleteByPattern(ctx, JobsListPrefix+"*")
}

// AcquireSourceLock takes the cross-process lock for one source. With no
// redis configured the lock is granted, leaving only the in-process guard.
func (r *Redis) AcquireSourceLock(ctx context.Context, source string, ttl time.Duration) (func(context.Context) error, bool, error) {
	noop := func(context.Context) error { return nil }
	if r.isUnavailable() {
		return noop, true, nil
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}
	key := sourceLockPrefix + source
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		r.warnUnavailableOnce(err)
		return noop, true, nil
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		return nil
	}
	return release, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
