package erp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// credentials caches the login uid with an explicit expiry. The redis copy
// is shared by every replica; the in-process copy avoids a round trip per call.
type credentials struct {
	login func(context.Context) (int64, error)
	store redis.UniversalClient
	key   string
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	value   int64
	expires time.Time
	group   singleflight.Group
}

func newCredentials(login func(context.Context) (int64, error), store redis.UniversalClient, key string, ttl time.Duration) *credentials {
	return &credentials{login: login, store: store, key: key, ttl: ttl, now: time.Now}
}

func (c *credentials) cached() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value > 0 && c.now().Before(c.expires) {
		return c.value, true
	}
	return 0, false
}

func (c *credentials) set(uid int64, ttl time.Duration) {
	c.mu.Lock()
	c.value = uid
	c.expires = c.now().Add(ttl)
	c.mu.Unlock()
}

func (c *credentials) uid(ctx context.Context) (int64, error) {
	if uid, ok := c.cached(); ok {
		return uid, nil
	}
	v, err, _ := c.group.Do("uid", func() (any, error) {
		if uid, ok := c.cached(); ok {
			return uid, nil
		}
		if uid, ttl, ok := c.fromStore(ctx); ok {
			c.set(uid, ttl)
			return uid, nil
		}
		uid, err := c.login(ctx)
		if err != nil {
			return int64(0), err
		}
		c.set(uid, c.ttl)
		if c.store != nil {
			if err := c.store.Set(ctx, c.key, uid, c.ttl).Err(); err != nil {
				slog.WarnContext(ctx, "erp credential cache write failed", slog.Any("error", err))
			}
		}
		return uid, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (c *credentials) fromStore(ctx context.Context) (int64, time.Duration, bool) {
	if c.store == nil {
		return 0, 0, false
	}
	uid, err := c.store.Get(ctx, c.key).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "erp credential cache read failed", slog.Any("error", err))
		}
		return 0, 0, false
	}
	if uid <= 0 {
		return 0, 0, false
	}
	ttl, err := c.store.PTTL(ctx, c.key).Result()
	if err != nil || ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	return uid, ttl, true
}

func (c *credentials) invalidate(ctx context.Context) {
	c.mu.Lock()
	c.value = 0
	c.expires = time.Time{}
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Del(ctx, c.key).Err(); err != nil {
			slog.WarnContext(ctx, "erp credential cache delete failed", slog.Any("error", err))
		}
	}
}
