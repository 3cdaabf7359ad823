// Package rate implementa límites de ventana fija por key (IP + ruta).
// El backend es Redis cuando hay réplicas y go-cache en un solo nodo.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// windowKey arma la key de la ventana actual; el inicio de la ventana va en
// la key, así que cada ventana arranca con el contador en cero.
func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Time) {
	start := now.Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), start.Add(window)
}

func result(hits, max int64, ttl time.Duration) Result {
	res := Result{
		Allowed:     hits <= max,
		Remaining:   max - hits,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

// RedisLimiter cuenta con INCR y expira la key al primer hit.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	redisKey, end := windowKey(l.Prefix, key, now, l.Window)

	hits, err := l.Client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		// margen de un segundo para no cortar la ventana antes de tiempo
		if err := l.Client.Expire(ctx, redisKey, end.Sub(now)+time.Second).Err(); err != nil {
			return Result{}, err
		}
	}
	return result(hits, l.Max, end.Sub(now)), nil
}

// MemoryLimiter es la variante in-process sobre go-cache. Sus contadores
// no se comparten entre réplicas.
type MemoryLimiter struct {
	c      *gocache.Cache
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return newMemoryLimiter(gocache.New(window, 2*window), max, window)
}

func newMemoryLimiter(c *gocache.Cache, max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      c,
		Max:    int64(max),
		Window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	k, end := windowKey("", key, now, l.Window)

	// Add falla si la key ya existe; en ese caso solo se incrementa.
	_ = l.c.Add(k, int64(0), end.Sub(now)+time.Second)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, l.Max, end.Sub(now)), nil
}
