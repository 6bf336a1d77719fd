package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisCatalogCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client, prefix: "backoffice:catalog:"}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) Get(ctx context.Context, key string) (*Snapshot, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *RedisCatalogCache) Set(ctx context.Context, key string, value *Snapshot, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, payload, ttl).Err()
}

func (c *RedisCatalogCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
