package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// interactionRepo persiste details como JSONB validado por tag y la
// lookup_key derivada en una columna indexada.
type interactionRepo struct{ pool *pgxpool.Pool }

const interactionCols = `id, details, created_at, expires_at`

func scanInteraction(row pgx.Row) (*repository.Interaction, error) {
	var (
		ix  repository.Interaction
		raw []byte
	)
	if err := row.Scan(&ix.ID, &raw, &ix.CreatedAt, &ix.ExpiresAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &ix.Details); err != nil {
		return nil, fmt.Errorf("pg: interaction %s: %w", ix.ID, err)
	}
	return &ix, nil
}

func (r *interactionRepo) Create(ctx context.Context, in repository.CreateInteractionInput) (*repository.Interaction, error) {
	if in.ID == "" || in.TTL <= 0 {
		return nil, repository.ErrInvalidInput
	}
	raw, err := json.Marshal(in.Details)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO interaction (id, type, lookup_key, details, created_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW() + make_interval(secs => $5::double precision))
		RETURNING ` + interactionCols
	ix, err := scanInteraction(conn(ctx, r.pool).QueryRow(ctx, q,
		in.ID, string(in.Details.Type), in.Details.LookupKey(), raw, in.TTL.Seconds()))
	if err != nil {
		return nil, mapErr("create interaction", err)
	}
	return ix, nil
}

func (r *interactionRepo) GetActive(ctx context.Context, id string) (*repository.Interaction, error) {
	ix, err := scanInteraction(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+interactionCols+` FROM interaction WHERE id = $1 AND expires_at > NOW()`, id))
	if err != nil {
		return nil, mapErr("get interaction", err)
	}
	return ix, nil
}

func (r *interactionRepo) ListActiveByLookup(ctx context.Context, t repository.InteractionType, key string) ([]repository.Interaction, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+interactionCols+` FROM interaction
		WHERE type = $1 AND lookup_key = $2 AND expires_at > NOW()
		ORDER BY created_at DESC`, string(t), key)
	if err != nil {
		return nil, mapErr("list interactions", err)
	}
	defer rows.Close()

	var out []repository.Interaction
	for rows.Next() {
		ix, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ix)
	}
	return out, mapErr("list interactions", rows.Err())
}

// lockActive toma la fila con FOR UPDATE dentro de tx.
func lockActive(ctx context.Context, tx pgx.Tx, id string) (*repository.Interaction, error) {
	return scanInteraction(tx.QueryRow(ctx,
		`SELECT `+interactionCols+` FROM interaction WHERE id = $1 AND expires_at > NOW() FOR UPDATE`, id))
}

func (r *interactionRepo) Mutate(ctx context.Context, id string, fn func(*repository.InteractionDetails) error) (*repository.Interaction, error) {
	tx, err := conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return nil, mapErr("begin", err)
	}
	defer tx.Rollback(ctx)

	ix, err := lockActive(ctx, tx, id)
	if err != nil {
		return nil, mapErr("lock interaction", err)
	}

	d := ix.Details.Clone()
	if err := fn(&d); err != nil {
		return nil, err
	}
	if d.Type != ix.Details.Type {
		return nil, fmt.Errorf("%w: interaction type is immutable", repository.ErrInvalidInput)
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE interaction SET details = $2, lookup_key = $3 WHERE id = $1`,
		id, raw, d.LookupKey()); err != nil {
		return nil, mapErr("update interaction", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr("commit", err)
	}
	ix.Details = d
	return ix, nil
}

// ConsumeWith: SELECT … FOR UPDATE, fn y DELETE en la misma transacción.
// Un request concurrente queda bloqueado en el SELECT y, al liberarse la
// fila, ya no la encuentra. fn recibe un ctx con la tx: lo que escriba se
// confirma o se descarta junto con el DELETE, y no pide otra conexión.
func (r *interactionRepo) ConsumeWith(ctx context.Context, id string, fn func(context.Context, *repository.Interaction) error) error {
	tx, err := conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return mapErr("begin", err)
	}
	defer tx.Rollback(ctx)

	ix, err := lockActive(ctx, tx, id)
	if err != nil {
		return mapErr("lock interaction", err)
	}
	if fn != nil {
		if err := fn(WithTx(ctx, tx), ix); err != nil {
			return err
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM interaction WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete interaction", err)
	}
	if tag.RowsAffected() != 1 {
		return repository.ErrNotFound
	}
	return mapErr("commit", tx.Commit(ctx))
}

func (r *interactionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM interaction WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, mapErr("delete expired interactions", err)
	}
	return tag.RowsAffected(), nil
}
