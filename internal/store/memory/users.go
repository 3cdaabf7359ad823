package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/google/uuid"
)

type userRepo struct{ db *DB }

func (r *userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) FindByEmail(_ context.Context, tenantID, email string) (*repository.User, error) {
	email = repository.NormalizeIdentifier(repository.ChannelEmail, email)
	return r.find(tenantID, func(u repository.User) bool {
		return u.PrimaryEmail != "" && strings.ToLower(u.PrimaryEmail) == email
	})
}

func (r *userRepo) FindByPhone(_ context.Context, tenantID, phone string) (*repository.User, error) {
	phone = repository.NormalizeIdentifier(repository.ChannelPhone, phone)
	return r.find(tenantID, func(u repository.User) bool {
		return u.PhoneNumber != "" && u.PhoneNumber == phone
	})
}

// find aplica la misma preferencia que el store postgres: usuario del
// tenant, luego plataforma, luego el resto (solo sin tenantID).
func (r *userRepo) find(tenantID string, match func(repository.User) bool) (*repository.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rank := func(u repository.User) int {
		switch {
		case tenantID != "" && u.TenantID == tenantID:
			return 0
		case u.TenantID == "":
			return 1
		default:
			return 2
		}
	}
	var out []repository.User
	for _, u := range r.db.users {
		if u.DeletedAt != nil || !match(u) {
			continue
		}
		if tenantID != "" && rank(u) == 2 {
			continue
		}
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank(out[i]), rank(out[j]); ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return &out[0], nil
}

// clash reporta si otro usuario activo del mismo ámbito ya usa email o phone.
// Requiere mu tomado.
func (r *userRepo) clash(selfID, tenantID, email, phone string) bool {
	for _, u := range r.db.users {
		if u.ID == selfID || u.DeletedAt != nil || u.TenantID != tenantID {
			continue
		}
		if email != "" && strings.EqualFold(u.PrimaryEmail, email) {
			return true
		}
		if phone != "" && u.PhoneNumber == phone {
			return true
		}
	}
	return false
}

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := repository.NormalizeIdentifier(repository.ChannelEmail, in.PrimaryEmail)
	phone := repository.NormalizeIdentifier(repository.ChannelPhone, in.PhoneNumber)

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.clash("", in.TenantID, email, phone) {
		return nil, repository.ErrConflict
	}
	now := r.db.now().UTC()
	u := repository.User{
		ID:            uuid.NewString(),
		TenantID:      in.TenantID,
		PrimaryEmail:  email,
		PhoneNumber:   phone,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		EmailVerified: in.EmailVerified,
		PhoneVerified: in.PhoneVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.PasswordHash != "" {
		h := in.PasswordHash
		u.PasswordHash = &h
	}
	r.db.users[u.ID] = u
	return &u, nil
}

func (r *userRepo) Update(_ context.Context, id string, in repository.UpdateUserInput) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.PhoneNumber != nil {
		phone := repository.NormalizeIdentifier(repository.ChannelPhone, *in.PhoneNumber)
		if phone != u.PhoneNumber {
			if r.clash(u.ID, u.TenantID, "", phone) {
				return nil, repository.ErrConflict
			}
			u.PhoneNumber = phone
			u.PhoneVerified = false
		}
	}
	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	return &u, nil
}

func (r *userRepo) MarkVerified(_ context.Context, id string, ch repository.Channel) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	switch ch {
	case repository.ChannelEmail:
		u.EmailVerified = true
	case repository.ChannelPhone:
		u.PhoneVerified = true
	default:
		return repository.ErrInvalidInput
	}
	u.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = u
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.users, id)
	for k, i := range r.db.identities {
		if i.UserID == id {
			delete(r.db.identities, k)
		}
	}
	for k, rt := range r.db.refresh {
		if rt.UserID == id {
			delete(r.db.refresh, k)
		}
	}
	return nil
}

type identityRepo struct{ db *DB }

func (r *identityRepo) GetByProvider(_ context.Context, provider, providerID string) (*repository.Identity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, i := range r.db.identities {
		if i.Provider == provider && i.ProviderID == providerID {
			i := i
			return &i, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *identityRepo) ListByUser(_ context.Context, userID string) ([]repository.Identity, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []repository.Identity
	for _, i := range r.db.identities {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (r *identityRepo) Create(_ context.Context, userID, provider, providerID string) (*repository.Identity, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[userID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, i := range r.db.identities {
		if i.Provider == provider && i.ProviderID == providerID {
			return nil, repository.ErrConflict
		}
	}
	i := repository.Identity{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		CreatedAt:  r.db.now().UTC(),
	}
	r.db.identities[i.ID] = i
	return &i, nil
}

func (r *identityRepo) DeleteByUser(_ context.Context, userID, provider string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, i := range r.db.identities {
		if i.UserID == userID && i.Provider == provider {
			delete(r.db.identities, id)
			n++
		}
	}
	return n, nil
}

type refreshRepo struct{ db *DB }

func (r *refreshRepo) Create(_ context.Context, in repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	if in.UserID == "" || in.TokenHash == "" {
		return nil, repository.ErrInvalidInput
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.refresh[in.TokenHash]; ok {
		return nil, repository.ErrConflict
	}
	rt := repository.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		TokenHash: in.TokenHash,
		Scopes:    append([]string{}, in.Scopes...),
		ExpiresAt: in.ExpiresAt,
		CreatedAt: r.db.now().UTC(),
	}
	r.db.refresh[rt.TokenHash] = rt
	return &rt, nil
}

func (r *refreshRepo) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rt, ok := r.db.refresh[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}
