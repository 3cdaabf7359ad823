// Package redis implementa el InteractionRepository sobre Redis, para
// despliegues que prefieren no escribir interacciones efímeras en Postgres.
//
// Layout:
//
//	{prefix}ix:{id}                  JSON del registro, PEXPIREAT = expires_at
//	{prefix}ixl:{type}:{lookup_key}  ZSET de ids, score = created_at (µs)
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	rdb "github.com/redis/go-redis/v9"
)

const maxRetries = 4

type record struct {
	ID        string                        `json:"id"`
	Details   repository.InteractionDetails `json:"details"`
	CreatedAt time.Time                     `json:"created_at"`
	ExpiresAt time.Time                     `json:"expires_at"`
}

func (r record) interaction() *repository.Interaction {
	return &repository.Interaction{ID: r.ID, Details: r.Details.Clone(), CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
}

type InteractionStore struct {
	client *rdb.Client
	prefix string
	now    func() time.Time
}

var _ repository.InteractionRepository = (*InteractionStore)(nil)

func NewInteractionStore(client *rdb.Client, prefix string) *InteractionStore {
	return &InteractionStore{client: client, prefix: prefix, now: time.Now}
}

// SetClock reemplaza el reloj (tests con miniredis.FastForward).
func (s *InteractionStore) SetClock(now func() time.Time) { s.now = now }

func (s *InteractionStore) key(id string) string { return s.prefix + "ix:" + id }

func (s *InteractionStore) indexKey(t repository.InteractionType, lookup string) string {
	return s.prefix + "ixl:" + string(t) + ":" + lookup
}

func (s *InteractionStore) decode(b []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode interaction: %w", err)
	}
	return &rec, nil
}

func (s *InteractionStore) Create(ctx context.Context, in repository.CreateInteractionInput) (*repository.Interaction, error) {
	if in.ID == "" || in.TTL <= 0 {
		return nil, repository.ErrInvalidInput
	}
	if err := in.Details.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec := record{ID: in.ID, Details: in.Details.Clone(), CreatedAt: now, ExpiresAt: now.Add(in.TTL)}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, s.key(in.ID), b, in.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: create interaction: %w", err)
	}
	if !ok {
		return nil, repository.ErrConflict
	}
	if lk := in.Details.LookupKey(); lk != "" {
		if err := s.index(ctx, s.client, rec, lk); err != nil {
			return nil, err
		}
	}
	return rec.interaction(), nil
}

func (s *InteractionStore) index(ctx context.Context, c rdb.Cmdable, rec record, lookup string) error {
	ik := s.indexKey(rec.Details.Type, lookup)
	pipe := c.TxPipeline()
	pipe.ZAdd(ctx, ik, rdb.Z{Score: float64(rec.CreatedAt.UnixMicro()), Member: rec.ID})
	// mismo tipo => mismo TTL, así que el último miembro es el más longevo
	pipe.Expire(ctx, ik, rec.ExpiresAt.Sub(s.now()))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: index interaction: %w", err)
	}
	return nil
}

func (s *InteractionStore) GetActive(ctx context.Context, id string) (*repository.Interaction, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get interaction: %w", err)
	}
	rec, err := s.decode(b)
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, repository.ErrNotFound
	}
	return rec.interaction(), nil
}

func (s *InteractionStore) ListActiveByLookup(ctx context.Context, t repository.InteractionType, lookup string) ([]repository.Interaction, error) {
	ik := s.indexKey(t, lookup)
	ids, err := s.client.ZRevRange(ctx, ik, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list interactions: %w", err)
	}
	var out []repository.Interaction
	for _, id := range ids {
		ix, err := s.GetActive(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.client.ZRem(ctx, ik, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		// el índice puede estar desfasado tras un Mutate concurrente
		if ix.Details.Type == t && ix.Details.LookupKey() == lookup {
			out = append(out, *ix)
		}
	}
	return out, nil
}

// watch ejecuta fn bajo WATCH con reintentos ante TxFailedErr.
func (s *InteractionStore) watch(ctx context.Context, key string, fn func(tx *rdb.Tx) error) error {
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, rdb.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis: interaction %s: too much contention", key)
}

func (s *InteractionStore) load(ctx context.Context, tx *rdb.Tx, key string) (*record, error) {
	b, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.decode(b)
	if err != nil {
		return nil, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (s *InteractionStore) Mutate(ctx context.Context, id string, fn func(*repository.InteractionDetails) error) (*repository.Interaction, error) {
	key := s.key(id)
	var out *repository.Interaction
	err := s.watch(ctx, key, func(tx *rdb.Tx) error {
		rec, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		oldLookup := rec.Details.LookupKey()
		d := rec.Details.Clone()
		if err := fn(&d); err != nil {
			return err
		}
		if d.Type != rec.Details.Type {
			return fmt.Errorf("%w: interaction type is immutable", repository.ErrInvalidInput)
		}
		if err := d.Validate(); err != nil {
			return err
		}
		rec.Details = d
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Set(ctx, key, b, rdb.KeepTTL)
			if oldLookup != "" && oldLookup != d.LookupKey() {
				pipe.ZRem(ctx, s.indexKey(d.Type, oldLookup), id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if lk := d.LookupKey(); lk != "" && lk != oldLookup {
			if err := s.index(ctx, s.client, *rec, lk); err != nil {
				return err
			}
		}
		out = rec.interaction()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConsumeWith lee bajo WATCH, ejecuta fn y borra en MULTI. Si otro cliente
// consumió la key entre la lectura y el EXEC la transacción falla y se
// reporta ErrNotFound: fn pudo correr, pero su resultado se descarta.
func (s *InteractionStore) ConsumeWith(ctx context.Context, id string, fn func(context.Context, *repository.Interaction) error) error {
	key := s.key(id)
	err := s.client.Watch(ctx, func(tx *rdb.Tx) error {
		rec, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(ctx, rec.interaction()); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
			pipe.Del(ctx, key)
			if lk := rec.Details.LookupKey(); lk != "" {
				pipe.ZRem(ctx, s.indexKey(rec.Details.Type, lk), id)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, rdb.TxFailedErr) {
		return repository.ErrNotFound
	}
	return err
}

// DeleteExpired borra registros vencidos y limpia miembros huérfanos de
// los índices. Redis ya expira las keys solas; esto acota los ZSET.
func (s *InteractionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, s.prefix+"ix:*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		rec, err := s.decode(b)
		if err != nil || rec.ExpiresAt.After(before) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: delete expired: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis: scan interactions: %w", err)
	}

	idx := s.client.Scan(ctx, 0, s.prefix+"ixl:*", 200).Iterator()
	for idx.Next(ctx) {
		ik := idx.Val()
		ids, err := s.client.ZRange(ctx, ik, 0, -1).Result()
		if err != nil {
			continue
		}
		for _, id := range ids {
			if n, _ := s.client.Exists(ctx, s.key(id)).Result(); n == 0 {
				_ = s.client.ZRem(ctx, ik, id).Err()
			}
		}
	}
	return removed, idx.Err()
}
