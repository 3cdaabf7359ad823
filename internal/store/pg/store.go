// Package pg implementa los repositorios sobre PostgreSQL (pgx v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
	box  *secretbox.Box // nil = API keys de providers en claro
}

// Options ajusta el pool.
type Options struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
	SecretBox       *secretbox.Box
}

func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// El arranque no falla si la base todavía no responde; /readyz lo reporta.
	log := logger.From(ctx).With(logger.Component("pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return &Store{pool: pool, box: opts.SecretBox}, nil
}

// Pool expone el pool interno (migraciones).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// dbtx lo cumplen *pgxpool.Pool y pgx.Tx.
type dbtx interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// WithTx ata tx a ctx. Los repos que reciben ese ctx usan tx en vez de
// pedir otra conexión al pool.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn devuelve la tx de ctx o, si no hay, el pool.
func conn(ctx context.Context, pool *pgxpool.Pool) dbtx {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return pool
}

// savepoint corre fn en un savepoint si ctx trae tx: una violación de
// unicidad deja abortado solo el savepoint y la tx externa sigue usable.
func savepoint(ctx context.Context, pool *pgxpool.Pool, fn func(db dbtx) error) error {
	tx, ok := txFrom(ctx)
	if !ok {
		return fn(pool)
	}
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (s *Store) Tenants() repository.TenantRepository           { return &tenantRepo{s} }
func (s *Store) Applications() repository.ApplicationRepository { return &appRepo{s} }
func (s *Store) Users() repository.UserRepository               { return &userRepo{s.pool} }
func (s *Store) Identities() repository.IdentityRepository      { return &identityRepo{s.pool} }
func (s *Store) Interactions() repository.InteractionRepository { return &interactionRepo{s.pool} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository {
	return &refreshRepo{s.pool}
}

// ─── helpers ───

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// mapErr traduce errores de pgx a sentinels del repositorio.
func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), isInvalidText(err), isForeignKeyViolation(err):
		// un id que no es uuid (o que referencia una fila ausente) no existe
		return repository.ErrNotFound
	case isUniqueViolation(err):
		return repository.ErrConflict
	default:
		return fmt.Errorf("pg: %s: %w", op, err)
	}
}

// nullable devuelve nil para "" (columnas uuid/text opcionales).
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
