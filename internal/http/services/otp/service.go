// Package otp implementa el login por código de un solo uso enviado por
// email o SMS.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/audit"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/http/services/credentials"
	"github.com/dropDatabas3/hellobroker/internal/http/services/interaction"
	"github.com/dropDatabas3/hellobroker/internal/http/services/registry"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
	"github.com/dropDatabas3/hellobroker/internal/metrics"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
	"github.com/dropDatabas3/hellobroker/internal/util"
)

const (
	CodeDigits = 6
	CodeTTL    = 5 * time.Minute
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidChannel = errors.New("invalid channel")
	ErrMissingFields  = errors.New("missing required fields")
	// ErrInvalidOrExpired es el único error de Verify ante un código malo,
	// vencido, ya usado o inexistente.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	ErrDispatchFailed   = errors.New("failed to deliver code")
)

// Service define el flujo OTP.
type Service interface {
	// Request genera y envía un código. clientID puede ser el id de una
	// interacción OAuth en curso.
	Request(ctx context.Context, identifier string, ch repository.Channel, clientID string) error
	Verify(ctx context.Context, identifier, code string) (*tokens.Pair, error)
}

// Deps contiene las dependencias del flujo.
type Deps struct {
	Interactions interaction.Service
	Registry     registry.Service
	Credentials  credentials.Service
	Tokens       tokens.Service
	Notifier     *notify.Dispatcher
	// GenerateCode es opcional (tests).
	GenerateCode func() (string, error)
}

type service struct {
	deps Deps
}

// NewService crea el flujo OTP.
func NewService(d Deps) Service {
	if d.GenerateCode == nil {
		d.GenerateCode = func() (string, error) { return sectoken.GenerateNumericCode(CodeDigits) }
	}
	return &service{deps: d}
}

// channelOf deduce el canal de un identificador cuando no viene explícito.
func channelOf(identifier string) repository.Channel {
	if strings.Contains(identifier, "@") {
		return repository.ChannelEmail
	}
	return repository.ChannelPhone
}

func (s *service) Request(ctx context.Context, identifier string, ch repository.Channel, clientID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("OTP.Request"), logger.Channel(string(ch)))

	if !ch.Valid() {
		return ErrInvalidChannel
	}
	identifier = repository.NormalizeIdentifier(ch, identifier)
	clientID = strings.TrimSpace(clientID)
	if identifier == "" || clientID == "" {
		return ErrMissingFields
	}

	// clientId puede ser una interacción oidc_login pendiente
	if ix, err := s.deps.Interactions.FindActiveByID(ctx, clientID); err == nil && ix.Details.OIDC != nil {
		clientID = ix.Details.OIDC.ClientID
	}

	client, err := s.deps.Registry.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, registry.ErrClientNotFound) || errors.Is(err, registry.ErrTenantNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	log = log.With(logger.ClientID(clientID), logger.TenantID(client.App.TenantID),
		logger.String("identifier", util.MaskIdentifier(identifier)))

	if _, err := s.deps.Credentials.FindByIdentifier(ctx, client.App.TenantID, ch, identifier); err != nil {
		if errors.Is(err, credentials.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	code, err := s.deps.GenerateCode()
	if err != nil {
		return fmt.Errorf("otp: generate code: %w", err)
	}
	ix, err := s.deps.Interactions.Create(ctx, repository.NewOTPDetails(repository.OTPDetails{
		Identifier: identifier,
		Method:     ch,
		CodeHash:   sectoken.SHA256Base64URL(code),
		TenantID:   client.App.TenantID,
		ClientID:   clientID,
	}), CodeTTL)
	if err != nil {
		return err
	}
	log = log.With(logger.InteractionID(ix.ID))

	creds, ok := s.deps.Registry.Credentials(ctx, client, ch)
	if !ok {
		// sin credenciales el código no se envía, pero el caller no se entera
		log.Warn("no notification credentials configured, code not sent")
		metrics.OTPDispatch.WithLabelValues(string(ch), "skipped").Inc()
		return nil
	}

	msg, err := notify.CodeMessage(identifier, notify.CodeVars{Code: code, AppName: client.App.Name, TTL: CodeTTL})
	if err != nil {
		return err
	}
	if err := s.deps.Notifier.Send(ctx, ch, creds, msg); err != nil {
		log.Error("otp dispatch failed", logger.Err(err))
		metrics.OTPDispatch.WithLabelValues(string(ch), "failed").Inc()
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	metrics.OTPDispatch.WithLabelValues(string(ch), "sent").Inc()
	log.Info("otp sent")
	return nil
}

func (s *service) Verify(ctx context.Context, identifier, code string) (*tokens.Pair, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("OTP.Verify"))

	ch := channelOf(strings.TrimSpace(identifier))
	identifier = repository.NormalizeIdentifier(ch, identifier)
	code = strings.TrimSpace(code)
	if identifier == "" || code == "" {
		return nil, ErrInvalidOrExpired
	}
	codeHash := sectoken.SHA256Base64URL(code)

	ix, err := s.deps.Interactions.FindActive(ctx, repository.InteractionOTP, identifier, func(i *repository.Interaction) bool {
		return i.Details.OTP != nil &&
			i.Details.OTP.Identifier == identifier &&
			sectoken.EqualHash(i.Details.OTP.CodeHash, codeHash)
	})
	if err != nil {
		if errors.Is(err, interaction.ErrNotFound) {
			log.Debug("no matching otp")
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}

	var pair *tokens.Pair
	var userID string
	err = s.deps.Interactions.ConsumeWith(ctx, ix.ID, func(txCtx context.Context, rec *repository.Interaction) error {
		d := rec.Details.OTP
		if d == nil || !sectoken.EqualHash(d.CodeHash, codeHash) {
			return ErrInvalidOrExpired
		}
		u, _, err := s.deps.Credentials.FindOrCreateByIdentifier(txCtx, d.TenantID, d.Method, d.Identifier)
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
		if errors.Is(err, interaction.ErrAlreadyConsumed) {
			return nil, ErrInvalidOrExpired
		}
		return nil, err
	}

	metrics.TokensIssued.WithLabelValues("otp").Inc()
	audit.Log(ctx, audit.OTPVerified, logger.UserID(userID), logger.InteractionID(ix.ID))
	return pair, nil
}
