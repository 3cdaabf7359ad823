package registry

import (
	"github.com/dropDatabas3/hellobroker/internal/domain/repository"
	"github.com/dropDatabas3/hellobroker/internal/notify"
)

// ProviderTier es un nivel de la cadena de credenciales. Devuelve el set
// que ese nivel aporta para el cliente (puede estar vacío).
type ProviderTier struct {
	Name        string
	Credentials func(c *Client) notify.Credentials
}

// ApplicationTier credenciales propias de la aplicación.
var ApplicationTier = ProviderTier{
	Name: "application",
	Credentials: func(c *Client) notify.Credentials {
		if c == nil || c.App == nil {
			return notify.Credentials{}
		}
		return notify.Credentials{Email: c.App.Email, SMS: c.App.SMS}
	},
}

// TenantTier credenciales por defecto del tenant.
var TenantTier = ProviderTier{
	Name: "tenant",
	Credentials: func(c *Client) notify.Credentials {
		if c == nil || c.Tenant == nil {
			return notify.Credentials{}
		}
		return notify.Credentials{Email: c.Tenant.Email, SMS: c.Tenant.SMS}
	},
}

// DefaultTiers: la aplicación pisa al tenant.
var DefaultTiers = []ProviderTier{ApplicationTier, TenantTier}

// ResolveCredentials recorre tiers en orden y devuelve el primer set usable
// para el canal junto con el nombre del tier. ok=false si ninguno sirve.
func ResolveCredentials(c *Client, ch repository.Channel, tiers []ProviderTier) (creds notify.Credentials, tier string, ok bool) {
	for _, t := range tiers {
		cand := t.Credentials(c)
		switch ch {
		case repository.ChannelEmail:
			if cand.Email.Usable() {
				return notify.Credentials{Email: cand.Email}, t.Name, true
			}
		case repository.ChannelPhone:
			if cand.SMS.Usable() {
				return notify.Credentials{SMS: cand.SMS}, t.Name, true
			}
		}
	}
	return notify.Credentials{}, "", false
}
