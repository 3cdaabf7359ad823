package redis

import (
	"context"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/cache"
	rdb "github.com/redis/go-redis/v9"
)

type Cache struct {
	c      *rdb.Client
	prefix string
}

var _ cache.Cache = (*Cache)(nil)

// New envuelve un cliente existente (compartido con el limiter y el
// store de interacciones).
func New(client *rdb.Client, prefix string) *Cache {
	return &Cache{c: client, prefix: prefix}
}

func (r *Cache) Get(ctx context.Context, k string) ([]byte, bool) {
	b, err := r.c.Get(ctx, r.prefix+k).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *Cache) Set(ctx context.Context, k string, v []byte, ttl time.Duration) {
	_ = r.c.Set(ctx, r.prefix+k, v, ttl).Err()
}

func (r *Cache) Delete(ctx context.Context, k string) { _ = r.c.Del(ctx, r.prefix+k).Err() }

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
