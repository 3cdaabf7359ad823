package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
)

type interactionRepo struct{ db *DB }

func (r *interactionRepo) Create(_ context.Context, in repository.CreateInteractionInput) (*repository.Interaction, error) {
	if in.ID == "" || in.TTL <= 0 {
		return nil, repository.ErrInvalidInput
	}
	if err := in.Details.Validate(); err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.interactions[in.ID]; ok {
		return nil, repository.ErrConflict
	}
	now := r.db.now().UTC()
	ix := repository.Interaction{
		ID:        in.ID,
		Details:   in.Details.Clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(in.TTL),
	}
	r.db.interactions[ix.ID] = ix
	r.db.nextSeq++
	r.db.ixSeq[ix.ID] = r.db.nextSeq
	out := clone(ix)
	return &out, nil
}

// active requiere mu tomado.
func (r *interactionRepo) active(id string) (repository.Interaction, bool) {
	ix, ok := r.db.interactions[id]
	if !ok || !ix.Active(r.db.now()) {
		return repository.Interaction{}, false
	}
	return ix, true
}

func (r *interactionRepo) GetActive(_ context.Context, id string) (*repository.Interaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	ix, ok := r.active(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := clone(ix)
	return &out, nil
}

func (r *interactionRepo) ListActiveByLookup(_ context.Context, t repository.InteractionType, key string) ([]repository.Interaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	now := r.db.now()
	var out []repository.Interaction
	for _, ix := range r.db.interactions {
		if ix.Details.Type == t && ix.Details.LookupKey() == key && ix.Active(now) {
			out = append(out, clone(ix))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.db.ixSeq[out[i].ID] > r.db.ixSeq[out[j].ID]
	})
	return out, nil
}

func (r *interactionRepo) Mutate(_ context.Context, id string, fn func(*repository.InteractionDetails) error) (*repository.Interaction, error) {
	r.db.ixMu.Lock()
	defer r.db.ixMu.Unlock()

	r.db.mu.RLock()
	ix, ok := r.active(id)
	r.db.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}

	d := ix.Details.Clone()
	if err := fn(&d); err != nil {
		return nil, err
	}
	if d.Type != ix.Details.Type {
		return nil, fmt.Errorf("%w: interaction type is immutable", repository.ErrInvalidInput)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	r.db.mu.Lock()
	ix.Details = d
	r.db.interactions[id] = ix
	r.db.mu.Unlock()

	out := clone(ix)
	return &out, nil
}

func (r *interactionRepo) ConsumeWith(ctx context.Context, id string, fn func(context.Context, *repository.Interaction) error) error {
	r.db.ixMu.Lock()
	defer r.db.ixMu.Unlock()

	r.db.mu.RLock()
	ix, ok := r.active(id)
	r.db.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	cp := clone(ix)
	if fn != nil {
		if err := fn(ctx, &cp); err != nil {
			return err
		}
	}

	r.db.mu.Lock()
	delete(r.db.interactions, id)
	delete(r.db.ixSeq, id)
	r.db.mu.Unlock()
	return nil
}

func (r *interactionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, ix := range r.db.interactions {
		if !ix.ExpiresAt.After(before) {
			delete(r.db.interactions, id)
			delete(r.db.ixSeq, id)
			n++
		}
	}
	return n, nil
}

func clone(ix repository.Interaction) repository.Interaction {
	ix.Details = ix.Details.Clone()
	return ix
}
