package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache包装器
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache 创建基于go-cache的本地缓存
func NewGoCache(config LocalConfig) Cache {
	return &goCacheWrapper{
		cache: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	return gc.cache.Get(key)
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	gc.cache.Set(key, value, ttlOrDefault(expiration))
	return nil
}

// SetNX relies on go-cache's Add, which fails when a live item exists.
func (gc *goCacheWrapper) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if err := gc.cache.Add(key, value, ttlOrDefault(expiration)); err != nil {
		return false, nil
	}
	return true, nil
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return nil
}

func (gc *goCacheWrapper) Close() error {
	return nil
}

func ttlOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return gocache.DefaultExpiration
	}
	return d
}
