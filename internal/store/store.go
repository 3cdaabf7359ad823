// Package store arma el conjunto de repositorios según la configuración.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/dropDatabas3/hellobroker/internal/store/memory"
	"github.com/dropDatabas3/hellobroker/internal/store/pg"
	storeredis "github.com/dropDatabas3/hellobroker/internal/store/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"
)

// Store agrupa los repositorios que consumen los services.
type Store struct {
	Tenants       repository.TenantRepository
	Applications  repository.ApplicationRepository
	Users         repository.UserRepository
	Identities    repository.IdentityRepository
	Interactions  repository.InteractionRepository
	RefreshTokens repository.RefreshTokenRepository

	pg *pg.Store
}

// Options selecciona drivers.
type Options struct {
	Driver              string // postgres | memory
	DSN                 string
	MaxConns            int
	ConnMaxLifetime     time.Duration
	SecretBox           *secretbox.Box
	InteractionsBackend string // db | redis
	Redis               *rdb.Client
	RedisPrefix         string
}

// Open construye el Store. Con interactions=redis las interacciones
// viven en Redis y el resto en el driver relacional.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var s *Store
	switch opts.Driver {
	case "postgres":
		p, err := pg.New(ctx, opts.DSN, pg.Options{
			MaxConns:        opts.MaxConns,
			ConnMaxLifetime: opts.ConnMaxLifetime,
			SecretBox:       opts.SecretBox,
		})
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		s = &Store{
			Tenants:       p.Tenants(),
			Applications:  p.Applications(),
			Users:         p.Users(),
			Identities:    p.Identities(),
			Interactions:  p.Interactions(),
			RefreshTokens: p.RefreshTokens(),
			pg:            p,
		}
	case "memory", "":
		s = FromMemory(memory.New())
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}

	if opts.InteractionsBackend == "redis" {
		if opts.Redis == nil {
			return nil, fmt.Errorf("store: redis interactions backend without client")
		}
		s.Interactions = storeredis.NewInteractionStore(opts.Redis, opts.RedisPrefix)
	}
	logger.From(ctx).Info("store ready",
		logger.String("driver", opts.Driver),
		logger.String("interactions", opts.InteractionsBackend))
	return s, nil
}

// FromMemory envuelve una DB en memoria (tests y driver memory).
func FromMemory(db *memory.DB) *Store {
	return &Store{
		Tenants:       db.Tenants(),
		Applications:  db.Applications(),
		Users:         db.Users(),
		Identities:    db.Identities(),
		Interactions:  db.Interactions(),
		RefreshTokens: db.RefreshTokens(),
	}
}

// Migrate aplica las migraciones embebidas; no-op fuera de postgres.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if s.pg == nil {
		return 0, nil
	}
	return s.pg.Migrate(ctx)
}

// Pool devuelve el pool de postgres o nil con el driver memory.
func (s *Store) Pool() *pgxpool.Pool {
	if s.pg == nil {
		return nil
	}
	return s.pg.Pool()
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pg == nil {
		return nil
	}
	return s.pg.Ping(ctx)
}

func (s *Store) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
}
