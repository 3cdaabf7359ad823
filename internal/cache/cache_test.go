package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropDatabas3/hellobroker/internal/cache"
	"github.com/dropDatabas3/hellobroker/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/hellobroker/internal/cache/redis"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]cache.Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]cache.Cache{
		"memory": memory.New(time.Minute),
		"redis":  cacheredis.New(client, "test:"),
	}
}

func TestCacheBackends(t *testing.T) {
	ctx := context.Background()
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok := c.Get(ctx, "app:x")
			require.False(t, ok)

			c.Set(ctx, "app:x", []byte(`{"id":1}`), time.Minute)
			b, ok := c.Get(ctx, "app:x")
			require.True(t, ok)
			require.Equal(t, `{"id":1}`, string(b))

			c.Delete(ctx, "app:x")
			_, ok = c.Get(ctx, "app:x")
			require.False(t, ok)
			require.NoError(t, c.Ping(ctx))
		})
	}
}
