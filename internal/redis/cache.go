package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"backoffice/internal/domain/product"
)

// Cache key pattern:
// - product:{id} - 5m TTL, read-through product cache

// ProductCache is the read cache in front of the product table. Writers
// must invalidate after any stock mutation so readers do not observe a
// stale counter.
type ProductCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewProductCache(client *goredis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// Get returns the cached product, or (nil, false, nil) on a miss.
func (c *ProductCache) Get(ctx context.Context, id int64) (*product.Product, bool, error) {
	data, err := c.client.Get(ctx, productKey(id)).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p product.Product
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (c *ProductCache) Set(ctx context.Context, p *product.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(p.ID), data, c.ttl).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, productKey(id)).Err()
}
