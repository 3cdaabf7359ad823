package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

// MultiLimiter aplica límites distintos por endpoint sobre el mismo backend.
type MultiLimiter interface {
	AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// multi cachea un Limiter por combinación limit+window.
type multi struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	build    func(limit int, window time.Duration) Limiter
}

func (m *multi) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	configKey := fmt.Sprintf("%d:%s", limit, window)

	m.mu.RLock()
	limiter, ok := m.limiters[configKey]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if limiter, ok = m.limiters[configKey]; !ok {
			limiter = m.build(limit, window)
			m.limiters[configKey] = limiter
		}
		m.mu.Unlock()
	}
	// el límite va en la key para que dos endpoints no compartan contador
	return limiter.Allow(ctx, configKey+":"+key)
}

// NewMultiRedisLimiter comparte contadores entre réplicas.
func NewMultiRedisLimiter(client *rdb.Client, prefix string) MultiLimiter {
	return &multi{
		limiters: make(map[string]Limiter),
		build: func(limit int, window time.Duration) Limiter {
			return NewRedisLimiter(client, prefix, limit, window)
		},
	}
}

// NewMultiMemoryLimiter usa un único go-cache para todos los límites.
func NewMultiMemoryLimiter() MultiLimiter {
	c := gocache.New(time.Minute, 5*time.Minute)
	return &multi{
		limiters: make(map[string]Limiter),
		build: func(limit int, window time.Duration) Limiter {
			return newMemoryLimiter(c, limit, window)
		},
	}
}

// Fixed ata un MultiLimiter a un límite concreto y lo expone como Limiter.
type Fixed struct {
	Multi  MultiLimiter
	Limit  int
	Window time.Duration
}

func (f Fixed) Allow(ctx context.Context, key string) (Result, error) {
	return f.Multi.AllowWithLimits(ctx, key, f.Limit, f.Window)
}
