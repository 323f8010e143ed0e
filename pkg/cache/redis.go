package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// redisCache Redis缓存实现
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache 创建Redis缓存
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(client, "safeyatra:"), nil
}

// NewRedisCacheFromClient wraps an existing client; every key gets prefix.
func NewRedisCacheFromClient(client *redis.Client, prefix string) Cache {
	return &redisCache{client: client, prefix: prefix}
}

func (rc *redisCache) key(k string) string { return rc.prefix + k }

func (rc *redisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := rc.client.Get(ctx, rc.key(key)).Result()
	if err != nil {
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw, true
	}
	return value, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return rc.client.Set(ctx, rc.key(key), data, expiration).Err()
}

func (rc *redisCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}
	ok, err := rc.client.SetNX(ctx, rc.key(key), data, expiration).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return ok, nil
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

func (rc *redisCache) Exists(ctx context.Context, key string) bool {
	return rc.client.Exists(ctx, rc.key(key)).Val() > 0
}

// Clear removes only keys under this cache's prefix.
func (rc *redisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 200).Iterator()
	keys := make([]string, 0, 200)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == cap(keys) {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return rc.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}

// RedisClient returns the client behind c when c is redis backed.
func RedisClient(c Cache) (*redis.Client, bool) {
	rc, ok := c.(*redisCache)
	if !ok {
		return nil, false
	}
	return rc.client, true
}
