// Package cache define el cache de lecturas calientes (tenants, aplicaciones).
//
// Backends:
//   - memory: go-cache in-process (dev, tests, single node)
//   - redis: compartido entre réplicas
package cache

import (
	"context"
	"time"
)

// Cache es un key/value con TTL. Un miss no es un error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Ping(ctx context.Context) error
}
