// Package tokens emite access, refresh e ID tokens. El refresh token solo
// se persiste como hash.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
)

var (
	ErrIssueFailed  = errors.New("failed to issue token")
	ErrUserNotFound = errors.New("user not found")
)

// Pair es el resultado de GenerateTokens.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // segundos de vida del access token
}

// Service define las operaciones del TokenIssuer.
type Service interface {
	GenerateTokens(ctx context.Context, userID string, scopes []string) (*Pair, error)
	// GenerateIDToken arma un ID token OIDC para clientID. nonce vacío no
	// se incluye.
	GenerateIDToken(ctx context.Context, userID, clientID, nonce string) (string, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Issuer        *jwtx.Issuer
	Users         repository.UserRepository
	RefreshTokens repository.RefreshTokenRepository
}

type service struct {
	deps Deps
}

// NewService crea el TokenIssuer.
func NewService(d Deps) Service {
	return &service{deps: d}
}

func (s *service) GenerateTokens(ctx context.Context, userID string, scopes []string) (*Pair, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Tokens.GenerateTokens"), logger.UserID(userID))

	access, _, err := s.deps.Issuer.IssueAccess(userID, "", scopes)
	if err != nil {
		log.Error("failed to sign access token", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}
	refresh, refreshExp, err := s.deps.Issuer.IssueRefresh(userID)
	if err != nil {
		log.Error("failed to sign refresh token", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}

	if scopes == nil {
		scopes = []string{}
	}
	if _, err := s.deps.RefreshTokens.Create(ctx, repository.CreateRefreshTokenInput{
		UserID:    userID,
		TokenHash: sectoken.SHA256Base64URL(refresh),
		Scopes:    scopes,
		ExpiresAt: refreshExp,
	}); err != nil {
		log.Error("failed to persist refresh token", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.deps.Issuer.AccessTTL / time.Second),
	}, nil
}

func (s *service) GenerateIDToken(ctx context.Context, userID, clientID, nonce string) (string, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	extra := map[string]any{
		"email":       u.PrimaryEmail,
		"given_name":  u.FirstName,
		"family_name": u.LastName,
	}
	if nonce != "" {
		extra["nonce"] = nonce
	}
	if name := u.FullName(); name != "" {
		extra["name"] = name
	}

	tok, _, err := s.deps.Issuer.IssueIDToken(userID, clientID, extra)
	if err != nil {
		logger.From(ctx).Error("failed to sign id token", logger.Layer("service"), logger.Err(err))
		return "", fmt.Errorf("%w: %v", ErrIssueFailed, err)
	}
	return tok, nil
}
