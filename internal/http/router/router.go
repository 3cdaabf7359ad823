// Package router arma el árbol de rutas chi del broker.
package router

import (
	"net/http"
	"time"

	httpx "github.com/dropDatabas3/hellobroker/internal/http"
	authctrl "github.com/dropDatabas3/hellobroker/internal/http/controllers/auth"
	"github.com/dropDatabas3/hellobroker/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/hellobroker/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/hellobroker/internal/http/controllers/oidc"
	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	mw "github.com/dropDatabas3/hellobroker/internal/http/middlewares"
	"github.com/dropDatabas3/hellobroker/internal/http/services"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Limits son los limiters por grupo de endpoints. Un limiter nil desactiva
// el límite de ese grupo.
type Limits struct {
	Login  rate.Limiter
	OTP    rate.Limiter
	Wallet rate.Limiter
	Token  rate.Limiter
}

// Deps contiene lo necesario para montar el router.
type Deps struct {
	Services services.Services
	Issuer   *jwtx.Issuer
	Checks   map[string]health.Pinger
	// Metrics es el handler de /metrics; nil no monta la ruta.
	Metrics http.Handler
	Limits  Limits
	// RequestTimeout acota cada request; 0 sin límite.
	RequestTimeout time.Duration
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	auth := authctrl.NewControllers(d.Services)
	oauth := oauthctrl.NewControllers(d.Services)
	oidc := oidcctrl.NewControllers(d.Issuer)
	hc := health.NewControllers(d.Checks)

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(),
		httpx.WithMetrics,
		mw.WithTimeout(d.RequestTimeout),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/readyz", hc.Health.Readyz)
	r.Get("/.well-known/jwks.json", oidc.JWKS.Get)
	r.Get("/.well-known/openid-configuration", oidc.Discovery.Get)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	requireAuth := mw.RequireAuth(d.Issuer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", auth.Register.Register)
		r.With(sensitive(d.Limits.Login)).Post("/login", auth.Login.Login)

		r.With(requireAuth).Get("/profile", auth.Profile.GetProfile)
		r.With(requireAuth).Patch("/profile", auth.Profile.UpdateProfile)

		r.With(limit(d.Limits.OTP)).Post("/otp/request", auth.OTP.Request)
		r.With(sensitive(d.Limits.OTP)).Post("/otp/verify", auth.OTP.Verify)

		r.With(mw.WithNoStore()).Get("/nonce/{address}", auth.Wallet.Nonce)
		r.With(sensitive(d.Limits.Wallet)).Post("/wallet/login", auth.Wallet.Login)
		r.With(requireAuth).Post("/wallet/unlink", auth.Wallet.Unlink)

		r.Get("/interaction/{id}", oauth.Interaction.Details)
		r.With(mw.OptionalAuth(d.Issuer)).Post("/interaction/login", oauth.Interaction.Login)
	})

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", oauth.Authorize.Authorize)
		r.With(sensitive(d.Limits.Token)).Post("/token", oauth.Token.Token)
	})

	return r
}

func limit(l rate.Limiter) mw.Middleware {
	return mw.WithRateLimit(mw.RateLimitConfig{Limiter: l, KeyFunc: mw.IPPathRateKey})
}

// sensitive: endpoints que devuelven tokens o consumen códigos.
func sensitive(l rate.Limiter) mw.Middleware {
	return mw.Compose(limit(l), mw.WithNoStore())
}
