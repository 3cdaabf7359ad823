// Package oauth implementa el authorization code grant sobre una
// interacción oidc_login: PENDING (creada) -> CONSENTED (código y usuario
// adjuntos) -> CONSUMED (borrada al canjear el código).
package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/audit"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	dto "github.com/dropDatabas3/hellobroker/internal/http/dto/oauth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/credentials"
	"github.com/dropDatabas3/hellobroker/internal/http/services/interaction"
	"github.com/dropDatabas3/hellobroker/internal/http/services/registry"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
	"github.com/dropDatabas3/hellobroker/internal/metrics"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellobroker/internal/security/token"
	"github.com/dropDatabas3/hellobroker/internal/validation"
)

const (
	InteractionTTL = 15 * time.Minute
	CodeBytes      = 32
	GrantTypeCode  = "authorization_code"
)

var (
	ErrMissingParams        = errors.New("missing required parameters")
	ErrUnsupportedResponse  = errors.New("unsupported response_type")
	ErrInvalidClient        = errors.New("invalid client")
	ErrInvalidRedirectURI   = errors.New("invalid redirect_uri")
	ErrInvalidScope         = errors.New("invalid scope")
	ErrInvalidInteraction   = errors.New("interaction invalid or expired")
	ErrAlreadyConsented     = errors.New("interaction already consented")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnsupportedGrantType = errors.New("unsupported grant_type")
	ErrInvalidCode          = errors.New("invalid or expired authorization code")
	ErrClientMismatch       = errors.New("code was issued to another client")
	ErrRedirectMismatch     = errors.New("redirect_uri does not match")
	ErrInvalidClientSecret  = errors.New("invalid client credentials")
)

// Service define el flujo OAuth.
type Service interface {
	StartInteraction(ctx context.Context, in dto.AuthorizeRequest) (*dto.AuthorizeResult, error)
	GetInteractionDetails(ctx context.Context, interactionID string) (*dto.InteractionDetails, error)
	// LoginInteraction adjunta código y usuario y devuelve la URL de vuelta
	// al cliente con code y state.
	LoginInteraction(ctx context.Context, interactionID, userID string) (string, error)
	// LoginWithPassword autentica email+password en el tenant de la
	// interacción y luego hace LoginInteraction.
	LoginWithPassword(ctx context.Context, interactionID, email, password string) (string, error)
	ExchangeCode(ctx context.Context, in dto.TokenRequest) (*dto.TokenResponse, error)
}

// Deps contiene las dependencias del flujo.
type Deps struct {
	Interactions interaction.Service
	Registry     registry.Service
	Credentials  credentials.Service
	Tokens       tokens.Service
	// LoginURL es la base de la UI de login hosteada.
	LoginURL string
}

type service struct {
	deps Deps
}

// NewService crea el flujo OAuth.
func NewService(d Deps) Service {
	d.LoginURL = strings.TrimRight(d.LoginURL, "/")
	return &service{deps: d}
}

func (s *service) StartInteraction(ctx context.Context, in dto.AuthorizeRequest) (*dto.AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("OAuth.StartInteraction"), logger.ClientID(in.ClientID))

	if in.ClientID == "" || in.RedirectURI == "" {
		return nil, ErrMissingParams
	}
	if in.ResponseType != "" && in.ResponseType != "code" {
		return nil, ErrUnsupportedResponse
	}
	scopes, err := validation.ParseScope(in.Scope)
	if err != nil {
		return nil, ErrInvalidScope
	}

	client, err := s.deps.Registry.Client(ctx, in.ClientID)
	if err != nil {
		if errors.Is(err, registry.ErrClientNotFound) || errors.Is(err, registry.ErrTenantNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if err := s.deps.Registry.ValidateRedirectURI(client, in.RedirectURI); err != nil {
		log.Debug("redirect_uri rejected", logger.String("redirect_uri", in.RedirectURI))
		return nil, ErrInvalidRedirectURI
	}

	ix, err := s.deps.Interactions.Create(ctx, repository.NewOIDCDetails(repository.OIDCLoginDetails{
		ClientID:    client.App.ClientID,
		TenantID:    client.App.TenantID,
		RedirectURI: in.RedirectURI,
		Scope:       strings.Join(scopes, " "),
		State:       in.State,
		Nonce:       in.Nonce,
	}), InteractionTTL)
	if err != nil {
		return nil, err
	}

	log.Info("authorization started", logger.InteractionID(ix.ID))
	return &dto.AuthorizeResult{
		InteractionID: ix.ID,
		LoginURL:      addQueryParam(s.deps.LoginURL+"/login", "interactionId", ix.ID),
	}, nil
}

// pending carga una interacción oidc_login vigente.
func (s *service) pending(ctx context.Context, id string) (*repository.Interaction, error) {
	ix, err := s.deps.Interactions.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, interaction.ErrNotFound) {
			return nil, ErrInvalidInteraction
		}
		return nil, err
	}
	if ix.Details.Type != repository.InteractionOIDCLogin || ix.Details.OIDC == nil {
		return nil, ErrInvalidInteraction
	}
	return ix, nil
}

func (s *service) GetInteractionDetails(ctx context.Context, interactionID string) (*dto.InteractionDetails, error) {
	ix, err := s.pending(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	d := ix.Details.OIDC
	client, err := s.deps.Registry.Client(ctx, d.ClientID)
	if err != nil {
		if errors.Is(err, registry.ErrClientNotFound) || errors.Is(err, registry.ErrTenantNotFound) {
			return nil, ErrInvalidInteraction
		}
		return nil, err
	}
	return &dto.InteractionDetails{
		InteractionID: ix.ID,
		ClientID:      d.ClientID,
		ClientName:    client.App.Name,
		TenantName:    client.Tenant.Name,
		Logo:          client.App.LogoURL,
		Scopes:        scopes(d.Scope),
	}, nil
}

func (s *service) LoginWithPassword(ctx context.Context, interactionID, email, password string) (string, error) {
	ix, err := s.pending(ctx, interactionID)
	if err != nil {
		return "", err
	}
	u, err := s.deps.Credentials.VerifyPassword(ctx, ix.Details.OIDC.TenantID, email, password)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	return s.LoginInteraction(ctx, interactionID, u.ID)
}

func (s *service) LoginInteraction(ctx context.Context, interactionID, userID string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("OAuth.LoginInteraction"),
		logger.InteractionID(interactionID), logger.UserID(userID))

	if interactionID == "" || userID == "" {
		return "", ErrMissingParams
	}
	u, err := s.deps.Credentials.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, credentials.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	code, err := sectoken.GenerateOpaqueToken(CodeBytes)
	if err != nil {
		return "", err
	}
	ix, err := s.deps.Interactions.Mutate(ctx, interactionID, func(d *repository.InteractionDetails) error {
		if d.Type != repository.InteractionOIDCLogin || d.OIDC == nil {
			return ErrInvalidInteraction
		}
		if d.OIDC.Consented() {
			return ErrAlreadyConsented
		}
		// Un usuario de otro tenant no existe para esta interacción; los de
		// plataforma valen en cualquiera.
		if u.TenantID != "" && u.TenantID != d.OIDC.TenantID {
			log.Warn("user belongs to another tenant", logger.TenantID(d.OIDC.TenantID))
			return ErrUserNotFound
		}
		d.OIDC.CodeHash = sectoken.SHA256Base64URL(code)
		d.OIDC.UserID = userID
		return nil
	})
	if err != nil {
		if errors.Is(err, interaction.ErrNotFound) {
			return "", ErrInvalidInteraction
		}
		return "", err
	}

	d := ix.Details.OIDC
	loc := addQueryParam(d.RedirectURI, "code", code)
	if d.State != "" {
		loc = addQueryParam(loc, "state", d.State)
	}
	log.Info("interaction consented", logger.ClientID(d.ClientID))
	return loc, nil
}

func (s *service) ExchangeCode(ctx context.Context, in dto.TokenRequest) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("OAuth.ExchangeCode"), logger.ClientID(in.ClientID))

	if in.GrantType != GrantTypeCode {
		return nil, ErrUnsupportedGrantType
	}
	if in.Code == "" || in.ClientID == "" {
		return nil, ErrMissingParams
	}
	codeHash := sectoken.SHA256Base64URL(in.Code)

	ix, err := s.deps.Interactions.FindActive(ctx, repository.InteractionOIDCLogin, codeHash, func(i *repository.Interaction) bool {
		return i.Details.OIDC.Consented() && sectoken.EqualHash(i.Details.OIDC.CodeHash, codeHash)
	})
	if err != nil {
		if errors.Is(err, interaction.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	d := ix.Details.OIDC
	if d.ClientID != in.ClientID {
		log.Warn("authorization code presented by another client", logger.InteractionID(ix.ID))
		return nil, ErrClientMismatch
	}
	if in.RedirectURI != "" && in.RedirectURI != d.RedirectURI {
		return nil, ErrRedirectMismatch
	}
	if err := s.authenticateClient(ctx, in); err != nil {
		return nil, err
	}

	var resp *dto.TokenResponse
	err = s.deps.Interactions.ConsumeWith(ctx, ix.ID, func(txCtx context.Context, rec *repository.Interaction) error {
		cur := rec.Details.OIDC
		if cur == nil || !sectoken.EqualHash(cur.CodeHash, codeHash) || cur.ClientID != in.ClientID {
			return ErrInvalidCode
		}
		pair, err := s.deps.Tokens.GenerateTokens(txCtx, cur.UserID, scopes(cur.Scope))
		if err != nil {
			return err
		}
		idToken, err := s.deps.Tokens.GenerateIDToken(txCtx, cur.UserID, cur.ClientID, cur.Nonce)
		if err != nil {
			return err
		}
		resp = &dto.TokenResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    pair.ExpiresIn,
			IDToken:      idToken,
			Scope:        cur.Scope,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, interaction.ErrAlreadyConsumed) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	metrics.TokensIssued.WithLabelValues("authorization_code").Inc()
	audit.Log(ctx, audit.CodeExchanged, logger.InteractionID(ix.ID), logger.UserID(d.UserID), logger.ClientID(d.ClientID))
	return resp, nil
}

// authenticateClient exige client_secret a los clientes confidenciales.
func (s *service) authenticateClient(ctx context.Context, in dto.TokenRequest) error {
	client, err := s.deps.Registry.Client(ctx, in.ClientID)
	if err != nil {
		if errors.Is(err, registry.ErrClientNotFound) || errors.Is(err, registry.ErrTenantNotFound) {
			return ErrInvalidClient
		}
		return err
	}
	if !client.App.IsConfidential() {
		return nil
	}
	if in.ClientSecret == "" || !sectoken.EqualHash(client.App.ClientSecretHash, sectoken.SHA256Base64URL(in.ClientSecret)) {
		return ErrInvalidClientSecret
	}
	return nil
}

func scopes(s string) []string {
	out := strings.Fields(s)
	if out == nil {
		return []string{}
	}
	return out
}

// addQueryParam agrega un parámetro respetando la query existente.
func addQueryParam(u, key, value string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
