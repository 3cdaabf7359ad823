// Package services arma todos los services del broker a partir de sus
// dependencias de infraestructura.
package services

import (
	"time"

	"github.com/dropDatabas3/hellobroker/internal/cache"
	"github.com/dropDatabas3/hellobroker/internal/http/services/auth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/credentials"
	"github.com/dropDatabas3/hellobroker/internal/http/services/interaction"
	"github.com/dropDatabas3/hellobroker/internal/http/services/oauth"
	"github.com/dropDatabas3/hellobroker/internal/http/services/otp"
	"github.com/dropDatabas3/hellobroker/internal/http/services/registry"
	"github.com/dropDatabas3/hellobroker/internal/http/services/tokens"
	"github.com/dropDatabas3/hellobroker/internal/http/services/wallet"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/notify"
	"github.com/dropDatabas3/hellobroker/internal/security/password"
	"github.com/dropDatabas3/hellobroker/internal/security/secretbox"
	"github.com/dropDatabas3/hellobroker/internal/store"
)

// Deps contiene las dependencias compartidas.
type Deps struct {
	Store    *store.Store
	Issuer   *jwtx.Issuer
	Cache    cache.Cache // opcional
	Box      *secretbox.Box
	CacheTTL time.Duration
	Notifier *notify.Dispatcher
	LoginURL string
	Policy   password.Policy
}

// Services agrupa todos los services.
type Services struct {
	Interactions interaction.Service
	Registry     registry.Service
	Credentials  credentials.Service
	Tokens       tokens.Service
	OTP          otp.Service
	Wallet       wallet.Service
	OAuth        oauth.Service
	Auth         auth.Service
}

// New crea el agregador de services.
func New(d Deps) Services {
	ix := interaction.NewService(interaction.Deps{Repo: d.Store.Interactions})
	reg := registry.NewService(registry.Deps{
		Tenants:      d.Store.Tenants,
		Applications: d.Store.Applications,
		Cache:        d.Cache,
		Box:          d.Box,
		CacheTTL:     d.CacheTTL,
	})
	creds := credentials.NewService(credentials.Deps{
		Users:      d.Store.Users,
		Identities: d.Store.Identities,
	})
	tok := tokens.NewService(tokens.Deps{
		Issuer:        d.Issuer,
		Users:         d.Store.Users,
		RefreshTokens: d.Store.RefreshTokens,
	})
	wal := wallet.NewService(wallet.Deps{Interactions: ix, Credentials: creds, Tokens: tok})

	return Services{
		Interactions: ix,
		Registry:     reg,
		Credentials:  creds,
		Tokens:       tok,
		OTP: otp.NewService(otp.Deps{
			Interactions: ix,
			Registry:     reg,
			Credentials:  creds,
			Tokens:       tok,
			Notifier:     d.Notifier,
		}),
		Wallet: wal,
		OAuth: oauth.NewService(oauth.Deps{
			Interactions: ix,
			Registry:     reg,
			Credentials:  creds,
			Tokens:       tok,
			LoginURL:     d.LoginURL,
		}),
		Auth: auth.NewService(auth.Deps{
			Registry:    reg,
			Credentials: creds,
			Tokens:      tok,
			Wallet:      wal,
			Policy:      d.Policy,
		}),
	}
}
