package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"chemdist/backend/internal/domain"
)

const bomKeyPrefix = "bom:product:"

type RedisBOMCache struct {
	client *redis.Client
}

func NewRedisBOMCache(addr string, password string, db int) *RedisBOMCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisBOMCache{client: client}
}

func (c *RedisBOMCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBOMCache) Close() error {
	return c.client.Close()
}

func (c *RedisBOMCache) Get(ctx context.Context, productID string) ([]domain.BOMEntry, bool, error) {
	val, err := c.client.Get(ctx, bomKeyPrefix+productID).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []domain.BOMEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Set caches entries for productID. An empty slice is cached too, so
// products without a bill of materials do not hit the database every time.
func (c *RedisBOMCache) Set(ctx context.Context, productID string, entries []domain.BOMEntry, ttl time.Duration) error {
	if entries == nil {
		entries = []domain.BOMEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bomKeyPrefix+productID, payload, ttl).Err()
}
