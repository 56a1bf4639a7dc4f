package shared

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockProgressKey names the set of products whose stock was already moved
// for an order.
func StockProgressKey(orderID int64) string {
	return fmt.Sprintf("pos:stock:%d", orderID)
}

// Progress remembers which steps of a multi-write ERP operation completed,
// so a retry can resume instead of repeating them.
type Progress struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewProgress returns a redis-backed progress store. Entries expire after ttl.
func NewProgress(client redis.UniversalClient, ttl time.Duration) *Progress {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Progress{client: client, ttl: ttl}
}

// Done lists the ids marked under key.
func (p *Progress) Done(ctx context.Context, key string) ([]int64, error) {
	if p == nil || p.client == nil {
		return nil, nil
	}
	members, err := p.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read progress %s: %w", key, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Mark records id under key and refreshes the expiry.
func (p *Progress) Mark(ctx context.Context, key string, id int64) error {
	if p == nil || p.client == nil {
		return nil
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, strconv.FormatInt(id, 10))
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark progress %s: %w", key, err)
	}
	return nil
}
