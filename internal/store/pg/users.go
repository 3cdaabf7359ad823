package pg

import (
	"context"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepo struct{ pool *pgxpool.Pool }

const userCols = `id::text, COALESCE(tenant_id::text, ''), COALESCE(primary_email, ''), COALESCE(phone_number, ''),
	first_name, last_name, password_hash, email_verified, phone_verified, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.TenantID, &u.PrimaryEmail, &u.PhoneNumber,
		&u.FirstName, &u.LastName, &u.PasswordHash, &u.EmailVerified, &u.PhoneVerified,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return u, nil
}

// Con tenant: usuario del tenant, luego plataforma. Sin tenant: plataforma
// primero y después cualquier otro, el más antiguo.
const userPreference = `
	AND deleted_at IS NULL
	AND ($1::uuid IS NULL OR tenant_id = $1::uuid OR tenant_id IS NULL)
	ORDER BY CASE WHEN tenant_id = $1::uuid THEN 0 WHEN tenant_id IS NULL THEN 1 ELSE 2 END, created_at
	LIMIT 1`

func (r *userRepo) FindByEmail(ctx context.Context, tenantID, email string) (*repository.User, error) {
	email = repository.NormalizeIdentifier(repository.ChannelEmail, email)
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE LOWER(primary_email) = $2`+userPreference,
		nullable(tenantID), email))
	if err != nil {
		return nil, mapErr("find user by email", err)
	}
	return u, nil
}

func (r *userRepo) FindByPhone(ctx context.Context, tenantID, phone string) (*repository.User, error) {
	phone = repository.NormalizeIdentifier(repository.ChannelPhone, phone)
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE phone_number = $2`+userPreference,
		nullable(tenantID), phone))
	if err != nil {
		return nil, mapErr("find user by phone", err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := repository.NormalizeIdentifier(repository.ChannelEmail, in.PrimaryEmail)
	phone := repository.NormalizeIdentifier(repository.ChannelPhone, in.PhoneNumber)
	const q = `
		INSERT INTO app_user (id, tenant_id, primary_email, phone_number, first_name, last_name,
		                      password_hash, email_verified, phone_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + userCols
	var u *repository.User
	err := savepoint(ctx, r.pool, func(db dbtx) (err error) {
		u, err = scanUser(db.QueryRow(ctx, q,
			uuid.NewString(), nullable(in.TenantID), nullable(email), nullable(phone),
			in.FirstName, in.LastName, nullable(in.PasswordHash), in.EmailVerified, in.PhoneVerified))
		return err
	})
	if err != nil {
		return nil, mapErr("create user", err)
	}
	return u, nil
}

func (r *userRepo) Update(ctx context.Context, id string, in repository.UpdateUserInput) (*repository.User, error) {
	var phone any
	if in.PhoneNumber != nil {
		phone = repository.NormalizeIdentifier(repository.ChannelPhone, *in.PhoneNumber)
	}
	// teléfono nuevo => deja de estar verificado
	const q = `
		UPDATE app_user SET
			first_name     = COALESCE($2, first_name),
			last_name      = COALESCE($3, last_name),
			phone_verified = CASE WHEN $4::text IS NOT NULL AND $4::text IS DISTINCT FROM phone_number
			                      THEN FALSE ELSE phone_verified END,
			phone_number   = COALESCE(NULLIF($4::text, ''), phone_number),
			updated_at     = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userCols
	var u *repository.User
	err := savepoint(ctx, r.pool, func(db dbtx) (err error) {
		u, err = scanUser(db.QueryRow(ctx, q, id, in.FirstName, in.LastName, phone))
		return err
	})
	if err != nil {
		return nil, mapErr("update user", err)
	}
	return u, nil
}

// Delete borra la fila (no soft-delete); identidades y refresh tokens caen
// por cascada.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) MarkVerified(ctx context.Context, id string, ch repository.Channel) error {
	var q string
	switch ch {
	case repository.ChannelEmail:
		q = `UPDATE app_user SET email_verified = TRUE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	case repository.ChannelPhone:
		q = `UPDATE app_user SET phone_verified = TRUE, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	default:
		return repository.ErrInvalidInput
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, q, id)
	if err != nil {
		return mapErr("mark verified", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ─── IdentityRepository ───

type identityRepo struct{ pool *pgxpool.Pool }

const identityCols = `id::text, user_id::text, provider, provider_id, created_at`

func (r *identityRepo) GetByProvider(ctx context.Context, provider, providerID string) (*repository.Identity, error) {
	var i repository.Identity
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+identityCols+` FROM identity WHERE provider = $1 AND provider_id = $2`,
		provider, providerID).Scan(&i.ID, &i.UserID, &i.Provider, &i.ProviderID, &i.CreatedAt)
	if err != nil {
		return nil, mapErr("get identity", err)
	}
	return &i, nil
}

func (r *identityRepo) ListByUser(ctx context.Context, userID string) ([]repository.Identity, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+identityCols+` FROM identity WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		if isInvalidText(err) {
			return nil, nil
		}
		return nil, mapErr("list identities", err)
	}
	defer rows.Close()

	var out []repository.Identity
	for rows.Next() {
		var i repository.Identity
		if err := rows.Scan(&i.ID, &i.UserID, &i.Provider, &i.ProviderID, &i.CreatedAt); err != nil {
			return nil, mapErr("scan identity", err)
		}
		out = append(out, i)
	}
	return out, mapErr("list identities", rows.Err())
}

func (r *identityRepo) Create(ctx context.Context, userID, provider, providerID string) (*repository.Identity, error) {
	i := repository.Identity{ID: uuid.NewString(), UserID: userID, Provider: provider, ProviderID: providerID}
	err := savepoint(ctx, r.pool, func(db dbtx) error {
		return db.QueryRow(ctx, `
			INSERT INTO identity (id, user_id, provider, provider_id, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING created_at`, i.ID, userID, provider, providerID).Scan(&i.CreatedAt)
	})
	if err != nil {
		return nil, mapErr("create identity", err)
	}
	return &i, nil
}

func (r *identityRepo) DeleteByUser(ctx context.Context, userID, provider string) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM identity WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return 0, mapErr("delete identities", err)
	}
	return tag.RowsAffected(), nil
}

// ─── RefreshTokenRepository ───

type refreshRepo struct{ pool *pgxpool.Pool }

func (r *refreshRepo) Create(ctx context.Context, in repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	if in.UserID == "" || in.TokenHash == "" {
		return nil, repository.ErrInvalidInput
	}
	scopes := in.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	rt := repository.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		TokenHash: in.TokenHash,
		Scopes:    scopes,
		ExpiresAt: in.ExpiresAt,
	}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO refresh_token (id, user_id, token_hash, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`, rt.ID, rt.UserID, rt.TokenHash, scopes, rt.ExpiresAt).Scan(&rt.CreatedAt)
	if err != nil {
		return nil, mapErr("create refresh token", err)
	}
	return &rt, nil
}

func (r *refreshRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	var rt repository.RefreshToken
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id::text, user_id::text, token_hash, scopes, expires_at, created_at
		FROM refresh_token WHERE token_hash = $1`, tokenHash).
		Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.Scopes, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		return nil, mapErr("get refresh token", err)
	}
	return &rt, nil
}
