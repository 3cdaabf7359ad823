// Package registry resuelve aplicaciones (clientes OAuth) y tenants, valida
// redirect URIs y elige las credenciales de notificación de cada cliente.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dropDatabas3/hellobroker/internal/cache"
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrClientNotFound     = errors.New("client not found")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrInvalidRedirectURI = errors.New("redirect_uri not registered for client")
)

// Client es una aplicación junto con su tenant.
type Client struct {
	App    *repository.Application
	Tenant *repository.Tenant
}

// Service define las operaciones del registry.
type Service interface {
	// Client resuelve aplicación + tenant por client_id.
	Client(ctx context.Context, clientID string) (*Client, error)
	// Tenant acepta id (uuid) o slug.
	Tenant(ctx context.Context, ref string) (*repository.Tenant, error)
	// ValidateRedirectURI exige coincidencia exacta con una URI registrada.
	ValidateRedirectURI(c *Client, uri string) error
	// Credentials resuelve el set de notificación del canal.
	Credentials(ctx context.Context, c *Client, ch repository.Channel) (notify.Credentials, bool)
	// Invalidate descarta lo cacheado para el client_id.
	Invalidate(ctx context.Context, clientID string)
}

// Deps contiene las dependencias del registry.
type Deps struct {
	Tenants      repository.TenantRepository
	Applications repository.ApplicationRepository
	// Cache es opcional. Con Box el payload cacheado va cifrado, porque
	// incluye API keys de los providers.
	Cache    cache.Cache
	Box      *secretbox.Box
	CacheTTL time.Duration
	Tiers    []ProviderTier
}

type service struct {
	deps  Deps
	group singleflight.Group
}

// NewService crea el registry.
func NewService(d Deps) Service {
	if d.CacheTTL <= 0 {
		d.CacheTTL = 2 * time.Minute
	}
	if len(d.Tiers) == 0 {
		d.Tiers = DefaultTiers
	}
	return &service{deps: d}
}

func clientKey(clientID string) string { return "registry:client:" + clientID }

func (s *service) Client(ctx context.Context, clientID string) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, ErrClientNotFound
	}
	if c, ok := s.fromCache(ctx, clientID); ok {
		return c, nil
	}

	v, err, _ := s.group.Do(clientID, func() (any, error) {
		app, err := s.deps.Applications.GetByClientID(ctx, clientID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
		tenant, err := s.deps.Tenants.GetByID(ctx, app.TenantID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrTenantNotFound
			}
			return nil, err
		}
		c := &Client{App: app, Tenant: tenant}
		s.toCache(ctx, clientID, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (s *service) Tenant(ctx context.Context, ref string) (*repository.Tenant, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrTenantNotFound
	}
	var (
		t   *repository.Tenant
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		t, err = s.deps.Tenants.GetByID(ctx, ref)
	} else {
		t, err = s.deps.Tenants.GetBySlug(ctx, ref)
	}
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *service) ValidateRedirectURI(c *Client, uri string) error {
	if c == nil || c.App == nil || uri == "" {
		return ErrInvalidRedirectURI
	}
	if !slices.Contains(c.App.RedirectURIs, uri) {
		return ErrInvalidRedirectURI
	}
	return nil
}

func (s *service) Credentials(ctx context.Context, c *Client, ch repository.Channel) (notify.Credentials, bool) {
	creds, tier, ok := ResolveCredentials(c, ch, s.deps.Tiers)
	if ok {
		logger.From(ctx).Debug("notification credentials resolved",
			logger.Layer("service"),
			logger.Channel(string(ch)),
			logger.String("tier", tier))
	}
	return creds, ok
}

func (s *service) Invalidate(ctx context.Context, clientID string) {
	if s.deps.Cache != nil {
		s.deps.Cache.Delete(ctx, clientKey(clientID))
	}
}

func (s *service) fromCache(ctx context.Context, clientID string) (*Client, bool) {
	if s.deps.Cache == nil {
		return nil, false
	}
	b, ok := s.deps.Cache.Get(ctx, clientKey(clientID))
	if !ok {
		return nil, false
	}
	if s.deps.Box != nil {
		plain, err := s.deps.Box.Decrypt(string(b))
		if err != nil {
			return nil, false
		}
		b = []byte(plain)
	}
	var c Client
	if err := json.Unmarshal(b, &c); err != nil || c.App == nil || c.Tenant == nil {
		return nil, false
	}
	return &c, true
}

func (s *service) toCache(ctx context.Context, clientID string, c *Client) {
	if s.deps.Cache == nil {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	if s.deps.Box != nil {
		enc, err := s.deps.Box.Encrypt(string(b))
		if err != nil {
			logger.From(ctx).Warn("registry cache encrypt failed", logger.Err(err))
			return
		}
		b = []byte(enc)
	}
	s.deps.Cache.Set(ctx, clientKey(clientID), b, s.deps.CacheTTL)
}
