// Package auth contiene registro, login con password y perfil.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/audit"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/auth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/credentials"
	"github.com/dropDatabas3/hellobroker/internal/http/services/registry"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
	"github.com/dropDatabas3/hellobroker/internal/http/services/wallet"
	"github.com/dropDatabas3/hellobroker/internal/metrics"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
)

var (
	ErrInvalidClient      = errors.New("invalid client or tenant")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentifierInUse    = errors.New("identifier already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrSignatureRequired  = errors.New("signature required to link wallet")
)

// PolicyError password rechazado por la política; Reasons para el detalle.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string { return "password policy: " + password.Describe(e.Reasons) }

// Service define registro, login y perfil.
type Service interface {
	Register(ctx context.Context, in dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, in dto.LoginRequest) (*tokens.Pair, error)
	Profile(ctx context.Context, userID string) (*dto.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in dto.ProfilePatch) (*dto.Profile, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Registry    registry.Service
	Credentials credentials.Service
	Tokens      tokens.Service
	Wallet      wallet.Service
	Policy      password.Policy
}

type service struct {
	deps Deps
}

// NewService crea el service de auth.
func NewService(d Deps) Service {
	return &service{deps: d}
}

// resolveTenant: tenantId explícito, si no el tenant del clientId, si no
// plataforma ("").
func (s *service) resolveTenant(ctx context.Context, tenantRef, clientID string) (string, error) {
	tenantRef, clientID = strings.TrimSpace(tenantRef), strings.TrimSpace(clientID)
	switch {
	case tenantRef != "":
		t, err := s.deps.Registry.Tenant(ctx, tenantRef)
		if err != nil {
			if errors.Is(err, registry.ErrTenantNotFound) {
				return "", ErrInvalidClient
			}
			return "", err
		}
		return t.ID, nil
	case clientID != "":
		c, err := s.deps.Registry.Client(ctx, clientID)
		if err != nil {
			if errors.Is(err, registry.ErrClientNotFound) || errors.Is(err, registry.ErrTenantNotFound) {
				return "", ErrInvalidClient
			}
			return "", err
		}
		return c.App.TenantID, nil
	}
	return "", nil
}

func (s *service) Register(ctx context.Context, in dto.RegisterRequest) (*dto.RegisterResponse, error) {
	tenantID, err := s.resolveTenant(ctx, in.TenantID, in.ClientID)
	if err != nil {
		return nil, err
	}
	if in.Password != "" {
		if reasons := s.deps.Policy.Validate(in.Password); len(reasons) > 0 {
			return nil, &PolicyError{Reasons: reasons}
		}
	}
	if in.WalletAddress != "" && in.Signature == "" {
		return nil, ErrSignatureRequired
	}

	var u *repository.User
	create := func(ctx context.Context) error {
		if in.WalletAddress != "" {
			inUse, err := s.deps.Credentials.WalletInUse(ctx, in.WalletAddress)
			if err != nil {
				return err
			}
			if inUse {
				return credentials.ErrIdentifierInUse
			}
		}
		var err error
		u, err = s.deps.Credentials.Register(ctx, credentials.RegisterInput{
			TenantID:      tenantID,
			Email:         in.Email,
			Phone:         in.Phone,
			FirstName:     in.FirstName,
			LastName:      in.LastName,
			Password:      in.Password,
			WalletAddress: in.WalletAddress,
		})
		return err
	}

	if in.WalletAddress != "" {
		// usuario e identidad se crean dentro de la consumición del desafío:
		// si la firma falla no se crea nada, y si el vínculo falla
		// credentials deshace el alta
		err = s.deps.Wallet.ProveOwnership(ctx, in.WalletAddress, in.Signature, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		if errors.Is(err, credentials.ErrIdentifierInUse) {
			return nil, ErrIdentifierInUse
		}
		return nil, err
	}

	pair, err := s.deps.Tokens.GenerateTokens(ctx, u.ID, nil)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues("register").Inc()
	audit.Log(ctx, audit.UserRegistered, logger.UserID(u.ID), logger.TenantID(tenantID))

	return &dto.RegisterResponse{
		UserID:       u.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *service) Login(ctx context.Context, in dto.LoginRequest) (*tokens.Pair, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Auth.Login"))

	tenantID, err := s.resolveTenant(ctx, in.TenantID, in.ClientID)
	if err != nil {
		if errors.Is(err, ErrInvalidClient) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	u, err := s.deps.Credentials.VerifyPassword(ctx, tenantID, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			log.Debug("password login rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	pair, err := s.deps.Tokens.GenerateTokens(ctx, u.ID, nil)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues("password").Inc()
	audit.Log(ctx, audit.PasswordLogin, logger.UserID(u.ID), logger.TenantID(tenantID))
	return pair, nil
}

func (s *service) Profile(ctx context.Context, userID string) (*dto.Profile, error) {
	u, err := s.deps.Credentials.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, credentials.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	addr, err := s.deps.Credentials.WalletAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfile(u, addr), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, in dto.ProfilePatch) (*dto.Profile, error) {
	if in.WalletAddress != nil && *in.WalletAddress != "" {
		if in.Signature == "" {
			return nil, ErrSignatureRequired
		}
		addr := strings.TrimSpace(*in.WalletAddress)
		err := s.deps.Wallet.ProveOwnership(ctx, addr, in.Signature, func(txCtx context.Context) error {
			return s.deps.Credentials.LinkWallet(txCtx, userID, addr)
		})
		if err != nil {
			if errors.Is(err, credentials.ErrIdentifierInUse) {
				return nil, ErrIdentifierInUse
			}
			return nil, err
		}
		audit.Log(ctx, audit.WalletLinked, logger.UserID(userID), logger.Address(addr))
	}

	upd := repository.UpdateUserInput{FirstName: trimmed(in.FirstName), LastName: trimmed(in.LastName), PhoneNumber: trimmed(in.Phone)}
	if upd.FirstName != nil || upd.LastName != nil || upd.PhoneNumber != nil {
		if _, err := s.deps.Credentials.UpdateProfile(ctx, userID, upd); err != nil {
			switch {
			case errors.Is(err, credentials.ErrUserNotFound):
				return nil, ErrUserNotFound
			case errors.Is(err, credentials.ErrIdentifierInUse):
				return nil, ErrIdentifierInUse
			}
			return nil, err
		}
	}
	return s.Profile(ctx, userID)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func toProfile(u *repository.User, walletAddress string) *dto.Profile {
	return &dto.Profile{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.PrimaryEmail,
		Phone:         u.PhoneNumber,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		WalletAddress: walletAddress,
	}
}
