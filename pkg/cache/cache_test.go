package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localBackends() map[string]Cache {
	cfg := LocalConfig{
		MaxSize:           100,
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}
	return map[string]Cache{
		"local":   NewLocalCache(cfg),
		"gocache": NewGoCache(cfg),
	}
}

func TestLocalBackends(t *testing.T) {
	ctx := context.Background()
	for name, c := range localBackends() {
		c := c
		t.Run(name, func(t *testing.T) {
			defer c.Close()

			require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
			v, ok := c.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "v", v)
			assert.True(t, c.Exists(ctx, "k"))

			require.NoError(t, c.Delete(ctx, "k"))
			assert.False(t, c.Exists(ctx, "k"))
		})
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	for name, c := range localBackends() {
		c := c
		t.Run(name, func(t *testing.T) {
			ok, err := c.SetNX(ctx, "once", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = c.SetNX(ctx, "once", 2, time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			v, _ := c.Get(ctx, "once")
			assert.Equal(t, 1, v)
		})
	}
}

func TestSetNXAfterExpiry(t *testing.T) {
	ctx := context.Background()
	for name, c := range localBackends() {
		c := c
		t.Run(name, func(t *testing.T) {
			ok, _ := c.SetNX(ctx, "short", true, 20*time.Millisecond)
			require.True(t, ok)
			time.Sleep(40 * time.Millisecond)

			ok, err := c.SetNX(ctx, "short", true, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestNewCacheRejectsUnknownType(t *testing.T) {
	_, err := NewCache(Config{Type: "memcached"})
	assert.Error(t, err)

	c, err := NewCache(Config{Type: "local", Local: LocalConfig{MaxSize: 10, DefaultExpiration: time.Minute}})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
