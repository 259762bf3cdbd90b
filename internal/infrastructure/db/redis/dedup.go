package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupTTL    = time.Hour
	dedupPrefix = "sale:idem:"
)

// SaleDedup provides idempotency keys for sales backed by Redis.
// Key format: sale:idem:<product_id>:<client key>
type SaleDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSaleDedup creates a SaleDedup wrapping the given Redis client. A ttl of
// zero uses one hour.
func NewSaleDedup(client *redis.Client, ttl time.Duration) *SaleDedup {
	if ttl <= 0 {
		ttl = dedupTTL
	}
	return &SaleDedup{client: client, ttl: ttl}
}

// Claim reserves key and reports whether this is its first use.
func (d *SaleDedup) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupPrefix+key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release forgets key so a failed sale can be retried with it.
func (d *SaleDedup) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, dedupPrefix+key).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}
