package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

const (
	keyPrefix  = "invoice:fingerprint:"
	DefaultTTL = 90 * 24 * time.Hour
)

// RedisDetector claims a fingerprint key per invoice. The key holds the id of the
// first invoice that claimed it, so reprocessing the same invoice is not a duplicate.
type RedisDetector struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDetector(client redis.Cmdable, ttl time.Duration) *RedisDetector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDetector{client: client, ttl: ttl}
}

// OpenRedis parses a redis:// URL and checks connectivity.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (d *RedisDetector) IsDuplicate(ctx context.Context, rec *domain.ProcessingRecord) (bool, error) {
	fp := Fingerprint(rec)
	if fp == "" {
		return false, nil
	}
	key := keyPrefix + fp

	claimed, err := d.client.SetNX(ctx, key, rec.InvoiceID, d.ttl).Result()
	if err != nil {
		return false, domain.WrapError(domain.ErrTemporary, "redis setnx", err)
	}
	if claimed {
		return false, nil
	}

	owner, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls.
		return false, nil
	}
	if err != nil {
		return false, domain.WrapError(domain.ErrTemporary, "redis get", err)
	}
	return owner != rec.InvoiceID, nil
}
