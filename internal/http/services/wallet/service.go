// Package wallet implementa el login por desafío de firma con wallets
// Stellar.
package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/audit"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/http/services/credentials"
	"github.com/dropDatabas3/hellobroker/internal/http/services/interaction"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
	"github.com/dropDatabas3/hellobroker/internal/metrics"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
	walletsig "github.com/dropDatabas3/hellobroker/internal/security/wallet"
)

const (
	NonceBytes = 32
	NonceTTL   = 2 * time.Minute
	// MaxAddressLen acota lo que se guarda como lookup key. Un strkey G…
	// tiene 56 caracteres; el formato se valida recién al verificar la firma.
	MaxAddressLen = 128
)

var (
	// ErrInvalidAddress dirección vacía o demasiado larga.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrChallengeNotFound no hay desafío vigente para la dirección.
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	// ErrSignatureInvalid cubre dirección, encoding o firma inválidos.
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrNotLinked        = errors.New("no wallet linked")
)

// Service define el flujo de wallet.
type Service interface {
	Nonce(ctx context.Context, address string) (string, error)
	Login(ctx context.Context, address, signature string) (*tokens.Pair, error)
	// ProveOwnership consume el desafío vigente de address si signature es
	// válida y ejecuta fn en la misma consumición. Si fn falla el desafío
	// sigue vigente. fn debe escribir con el ctx que recibe.
	ProveOwnership(ctx context.Context, address, signature string, fn func(ctx context.Context) error) error
	Unlink(ctx context.Context, userID string) error
}

// Deps contiene las dependencias del flujo.
type Deps struct {
	Interactions interaction.Service
	Credentials  credentials.Service
	Tokens       tokens.Service
}

type service struct {
	deps Deps
}

// NewService crea el flujo de wallet.
func NewService(d Deps) Service {
	return &service{deps: d}
}

func (s *service) Nonce(ctx context.Context, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" || len(address) > MaxAddressLen {
		return "", ErrInvalidAddress
	}
	nonce, err := sectoken.GenerateOpaqueToken(NonceBytes)
	if err != nil {
		return "", err
	}
	ix, err := s.deps.Interactions.Create(ctx, repository.NewWalletDetails(repository.WalletChallengeDetails{
		Address: address,
		Nonce:   nonce,
	}), NonceTTL)
	if err != nil {
		return "", err
	}
	logger.From(ctx).Debug("wallet challenge issued",
		logger.Layer("service"), logger.Address(address), logger.InteractionID(ix.ID))
	return nonce, nil
}

func (s *service) Login(ctx context.Context, address, signature string) (*tokens.Pair, error) {
	var pair *tokens.Pair
	var userID string
	err := s.ProveOwnership(ctx, address, signature, func(txCtx context.Context) error {
		u, _, err := s.deps.Credentials.FindOrCreateByWallet(txCtx, strings.TrimSpace(address))
		if err != nil {
			return err
		}
		pair, err = s.deps.Tokens.GenerateTokens(txCtx, u.ID, nil)
		if err != nil {
			return err
		}
		userID = u.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TokensIssued.WithLabelValues("wallet").Inc()
	audit.Log(ctx, audit.WalletLogin, logger.UserID(userID), logger.Address(address))
	return pair, nil
}

func (s *service) ProveOwnership(ctx context.Context, address, signature string, fn func(ctx context.Context) error) error {
	address = strings.TrimSpace(address)
	if address == "" || strings.TrimSpace(signature) == "" {
		return ErrSignatureInvalid
	}

	ix, err := s.deps.Interactions.FindActive(ctx, repository.InteractionWalletChallenge, address, nil)
	if err != nil {
		if errors.Is(err, interaction.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}

	err = s.deps.Interactions.ConsumeWith(ctx, ix.ID, func(txCtx context.Context, rec *repository.Interaction) error {
		d := rec.Details.Wallet
		if d == nil || d.Address != address {
			return ErrChallengeNotFound
		}
		if err := walletsig.Verify(address, []byte(d.Nonce), signature); err != nil {
			return ErrSignatureInvalid
		}
		if fn == nil {
			return nil
		}
		return fn(txCtx)
	})
	if errors.Is(err, interaction.ErrAlreadyConsumed) {
		return ErrChallengeNotFound
	}
	return err
}

func (s *service) Unlink(ctx context.Context, userID string) error {
	if err := s.deps.Credentials.UnlinkWallet(ctx, userID); err != nil {
		if errors.Is(err, credentials.ErrWalletNotLinked) {
			return ErrNotLinked
		}
		return err
	}
	audit.Log(ctx, audit.WalletUnlinked, logger.UserID(userID))
	return nil
}
