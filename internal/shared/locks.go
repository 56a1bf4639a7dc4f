package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionLockKey guards POS session transitions.
func SessionLockKey(action string) string {
	return "pos:session:" + action
}

// OrderLockKey guards mutations of a single order.
func OrderLockKey(orderID int64) string {
	return fmt.Sprintf("pos:order:%d", orderID)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker provides short-lived mutual exclusion across replicas. Callers must
// re-read ERP state after acquiring, since the lock only orders requests
// going through this service.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewLocker constructs a Locker. ttl bounds how long a crashed holder blocks others.
func NewLocker(client redis.UniversalClient, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Locker{client: client, ttl: ttl, wait: 2 * time.Second, retry: 50 * time.Millisecond}
}

// WithWait overrides how long Acquire polls before giving up.
func (l *Locker) WithWait(wait time.Duration) *Locker {
	cp := *l
	cp.wait = wait
	return &cp
}

// Acquire takes the lock or returns ErrBusy once the wait elapses.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s is held by another request", ErrBusy, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("lock release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// WithLock runs fn while holding key. A nil Locker runs fn unguarded.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}
	unlock, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}
