package memory

import (
	"context"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/google/uuid"
)

type tenantRepo struct{ db *DB }

func (r *tenantRepo) GetByID(_ context.Context, id string) (*repository.Tenant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *tenantRepo) GetBySlug(_ context.Context, slug string) (*repository.Tenant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.tenants {
		if t.Slug == slug {
			t := t
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *tenantRepo) Create(_ context.Context, in repository.CreateTenantInput) (*repository.Tenant, error) {
	if strings.TrimSpace(in.Slug) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, repository.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tenants {
		if t.Slug == in.Slug {
			return nil, repository.ErrConflict
		}
	}
	t := repository.Tenant{
		ID:        uuid.NewString(),
		Slug:      in.Slug,
		Name:      in.Name,
		Email:     in.Email,
		SMS:       in.SMS,
		CreatedAt: r.db.now().UTC(),
	}
	r.db.tenants[t.ID] = t
	return &t, nil
}

type appRepo struct{ db *DB }

func (r *appRepo) GetByClientID(_ context.Context, clientID string) (*repository.Application, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, a := range r.db.apps {
		if a.ClientID == clientID {
			a := a
			a.RedirectURIs = append([]string(nil), a.RedirectURIs...)
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *appRepo) Create(_ context.Context, in repository.CreateApplicationInput) (*repository.Application, error) {
	if in.TenantID == "" || strings.TrimSpace(in.ClientID) == "" {
		return nil, repository.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tenants[in.TenantID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, a := range r.db.apps {
		if a.ClientID == in.ClientID {
			return nil, repository.ErrConflict
		}
	}
	now := r.db.now().UTC()
	a := repository.Application{
		ID:               uuid.NewString(),
		TenantID:         in.TenantID,
		ClientID:         in.ClientID,
		Name:             in.Name,
		LogoURL:          in.LogoURL,
		ClientSecretHash: in.ClientSecretHash,
		RedirectURIs:     append([]string(nil), in.RedirectURIs...),
		Email:            in.Email,
		SMS:              in.SMS,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.db.apps[a.ID] = a
	return &a, nil
}
