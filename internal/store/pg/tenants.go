package pg

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/google/uuid"
)

// ─── providers (JSONB, api_key cifrada con secretbox) ───

func (s *Store) seal(v string) (string, error) {
	if s.box == nil || v == "" {
		return v, nil
	}
	return s.box.Encrypt(v)
}

func (s *Store) open(v string) (string, error) {
	if s.box == nil {
		return v, nil
	}
	return s.box.Decrypt(v)
}

func (s *Store) encodeEmail(p *repository.EmailProvider) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	cp := *p
	var err error
	if cp.APIKey, err = s.seal(cp.APIKey); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

func (s *Store) encodeSMS(p *repository.SMSProvider) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	cp := *p
	var err error
	if cp.APIKey, err = s.seal(cp.APIKey); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

func (s *Store) decodeProviders(emailRaw, smsRaw []byte) (*repository.EmailProvider, *repository.SMSProvider, error) {
	var (
		email *repository.EmailProvider
		sms   *repository.SMSProvider
		err   error
	)
	if len(emailRaw) > 0 {
		email = &repository.EmailProvider{}
		if err = json.Unmarshal(emailRaw, email); err != nil {
			return nil, nil, err
		}
		if email.APIKey, err = s.open(email.APIKey); err != nil {
			return nil, nil, err
		}
	}
	if len(smsRaw) > 0 {
		sms = &repository.SMSProvider{}
		if err = json.Unmarshal(smsRaw, sms); err != nil {
			return nil, nil, err
		}
		if sms.APIKey, err = s.open(sms.APIKey); err != nil {
			return nil, nil, err
		}
	}
	return email, sms, nil
}

// ─── TenantRepository ───

type tenantRepo struct{ s *Store }

const tenantCols = `id::text, slug, name, email_provider, sms_provider, created_at`

func (r *tenantRepo) scan(row interface{ Scan(...any) error }) (*repository.Tenant, error) {
	var (
		t                repository.Tenant
		emailRaw, smsRaw []byte
	)
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &emailRaw, &smsRaw, &t.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.Email, t.SMS, err = r.s.decodeProviders(emailRaw, smsRaw); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	t, err := r.scan(conn(ctx, r.s.pool).QueryRow(ctx, `SELECT `+tenantCols+` FROM tenant WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get tenant", err)
	}
	return t, nil
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*repository.Tenant, error) {
	t, err := r.scan(conn(ctx, r.s.pool).QueryRow(ctx, `SELECT `+tenantCols+` FROM tenant WHERE slug = $1`, slug))
	if err != nil {
		return nil, mapErr("get tenant by slug", err)
	}
	return t, nil
}

func (r *tenantRepo) Create(ctx context.Context, in repository.CreateTenantInput) (*repository.Tenant, error) {
	if in.Slug == "" || in.Name == "" {
		return nil, repository.ErrInvalidInput
	}
	emailRaw, err := r.s.encodeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	smsRaw, err := r.s.encodeSMS(in.SMS)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO tenant (id, slug, name, email_provider, sms_provider, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`
	t := &repository.Tenant{ID: uuid.NewString(), Slug: in.Slug, Name: in.Name, Email: in.Email, SMS: in.SMS}
	if err := conn(ctx, r.s.pool).QueryRow(ctx, q, t.ID, t.Slug, t.Name, emailRaw, smsRaw).Scan(&t.CreatedAt); err != nil {
		return nil, mapErr("create tenant", err)
	}
	return t, nil
}

// ─── ApplicationRepository ───

type appRepo struct{ s *Store }

func (r *appRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	const q = `
		SELECT id::text, tenant_id::text, client_id, name, logo_url, client_secret_hash,
		       redirect_uris, email_provider, sms_provider, created_at, updated_at
		FROM application WHERE client_id = $1`
	var (
		a                repository.Application
		emailRaw, smsRaw []byte
	)
	err := conn(ctx, r.s.pool).QueryRow(ctx, q, clientID).Scan(
		&a.ID, &a.TenantID, &a.ClientID, &a.Name, &a.LogoURL, &a.ClientSecretHash,
		&a.RedirectURIs, &emailRaw, &smsRaw, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr("get application", err)
	}
	if a.Email, a.SMS, err = r.s.decodeProviders(emailRaw, smsRaw); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appRepo) Create(ctx context.Context, in repository.CreateApplicationInput) (*repository.Application, error) {
	if in.TenantID == "" || in.ClientID == "" {
		return nil, repository.ErrInvalidInput
	}
	emailRaw, err := r.s.encodeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	smsRaw, err := r.s.encodeSMS(in.SMS)
	if err != nil {
		return nil, err
	}
	uris := in.RedirectURIs
	if uris == nil {
		uris = []string{}
	}
	const q = `
		INSERT INTO application (id, tenant_id, client_id, name, logo_url, client_secret_hash,
		                         redirect_uris, email_provider, sms_provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	a := &repository.Application{
		ID:               uuid.NewString(),
		TenantID:         in.TenantID,
		ClientID:         in.ClientID,
		Name:             in.Name,
		LogoURL:          in.LogoURL,
		ClientSecretHash: in.ClientSecretHash,
		RedirectURIs:     uris,
		Email:            in.Email,
		SMS:              in.SMS,
	}
	err = conn(ctx, r.s.pool).QueryRow(ctx, q, a.ID, a.TenantID, a.ClientID, a.Name, a.LogoURL,
		a.ClientSecretHash, uris, emailRaw, smsRaw).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr("create application", err)
	}
	return a, nil
}
