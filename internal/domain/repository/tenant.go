package repository

import (
	"context"
	"strings"
	"time"
)

// EmailProvider credenciales del gateway transaccional de email.
type EmailProvider struct {
	APIKey string `json:"api_key"`
	Sender string `json:"sender"`
}

// Usable indica si el set está completo para enviar.
func (p *EmailProvider) Usable() bool {
	return p != nil && strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.Sender) != ""
}

// SMSProvider credenciales del gateway SMS.
type SMSProvider struct {
	APIKey   string `json:"api_key"`
	Username string `json:"username"`
	SenderID string `json:"sender_id,omitempty"`
	Endpoint string `json:"endpoint"`
}

// Usable indica si el set está completo para enviar.
// SenderID es opcional: algunos gateways usan un shortcode por defecto.
func (p *SMSProvider) Usable() bool {
	return p != nil &&
		strings.TrimSpace(p.APIKey) != "" &&
		strings.TrimSpace(p.Username) != "" &&
		strings.TrimSpace(p.Endpoint) != ""
}

// Tenant representa una organización.
type Tenant struct {
	ID        string
	Slug      string
	Name      string
	Email     *EmailProvider
	SMS       *SMSProvider
	CreatedAt time.Time
}

// Application es un cliente OAuth que pertenece a un tenant.
type Application struct {
	ID       string
	TenantID string
	ClientID string
	Name     string
	LogoURL  string
	// ClientSecretHash es sha256 base64url del secret; vacío = cliente público.
	ClientSecretHash string
	RedirectURIs     []string
	Email            *EmailProvider
	SMS              *SMSProvider
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsConfidential indica si el cliente debe presentar client_secret.
func (a *Application) IsConfidential() bool {
	return a != nil && a.ClientSecretHash != ""
}

// CreateTenantInput contiene los datos para crear un tenant.
type CreateTenantInput struct {
	Slug  string
	Name  string
	Email *EmailProvider
	SMS   *SMSProvider
}

// CreateApplicationInput contiene los datos para crear una aplicación.
type CreateApplicationInput struct {
	TenantID         string
	ClientID         string
	Name             string
	LogoURL          string
	ClientSecretHash string
	RedirectURIs     []string
	Email            *EmailProvider
	SMS              *SMSProvider
}

// TenantRepository define operaciones sobre tenants.
type TenantRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// GetBySlug retorna ErrNotFound si no existe.
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)

	// Create retorna ErrConflict si el slug ya existe.
	Create(ctx context.Context, input CreateTenantInput) (*Tenant, error)
}

// ApplicationRepository define operaciones sobre aplicaciones (clientes OAuth).
type ApplicationRepository interface {
	// GetByClientID busca por client_id (único global).
	// Retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*Application, error)

	// Create retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, input CreateApplicationInput) (*Application, error)
}
