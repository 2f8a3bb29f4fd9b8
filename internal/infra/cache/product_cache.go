package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecorder/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "ecorder:product:"

// 商品詳細のキャッシュ（Redis）。
// 注文の価格計算には使わない。
type ProductRedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductRedisCache(redisURL string, ttl time.Duration) (*ProductRedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &ProductRedisCache{client: client, ttl: ttl}, nil
}

func (c *ProductRedisCache) Close() error {
	return c.client.Close()
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}

func (c *ProductRedisCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, err
	}

	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Product{}, false, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return p, true, nil
}

func (c *ProductRedisCache) Set(ctx context.Context, p model.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.client.Set(ctx, productKey(p.ID), data, c.ttl).Err()
}

func (c *ProductRedisCache) Delete(ctx context.Context, id int64) error {
	return c.client.Del(ctx, productKey(id)).Err()
}

// REDIS_URL未設定のとき用
type NopProductCache struct{}

func (NopProductCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	return model.Product{}, false, nil
}
func (NopProductCache) Set(ctx context.Context, p model.Product) error { return nil }
func (NopProductCache) Delete(ctx context.Context, id int64) error { return nil }
