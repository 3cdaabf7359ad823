package repository

import (
	"context"
	"time"
)

// RefreshToken guarda solo el hash del refresh token emitido.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Scopes    []string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateRefreshTokenInput contiene los datos para persistir un refresh token.
type CreateRefreshTokenInput struct {
	UserID    string
	TokenHash string
	Scopes    []string
	ExpiresAt time.Time
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create persiste el hash y retorna el registro creado.
	Create(ctx context.Context, input CreateRefreshTokenInput) (*RefreshToken, error)

	// GetByHash retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
}
