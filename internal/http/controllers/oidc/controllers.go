// Package oidc publica las llaves de firma y el documento de discovery.
package oidc

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/hellobroker/internal/http/errors"
	"github.com/dropDatabas3/hellobroker/internal/http/helpers"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
	"github.com/dropDatabas3/hellobroker/internal/observability/logger"
)

// Controllers agrupa los controllers OIDC.
type Controllers struct {
	JWKS      *JWKSController
	Discovery *DiscoveryController
}

func NewControllers(issuer *jwtx.Issuer) *Controllers {
	return &Controllers{
		JWKS:      &JWKSController{issuer: issuer},
		Discovery: &DiscoveryController{issuer: issuer},
	}
}

type JWKSController struct {
	issuer *jwtx.Issuer
}

// Get GET /.well-known/jwks.json
func (c *JWKSController) Get(w http.ResponseWriter, r *http.Request) {
	b, err := c.issuer.JWKSJSON()
	if err != nil {
		logger.From(r.Context()).Error("jwks marshal failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type DiscoveryController struct {
	issuer *jwtx.Issuer
}

type discoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// Get GET /.well-known/openid-configuration
func (c *DiscoveryController) Get(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(c.issuer.Iss, "/")
	w.Header().Set("Cache-Control", "public, max-age=300")
	helpers.WriteJSON(w, http.StatusOK, discoveryDocument{
		Issuer:                            c.issuer.Iss,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		JWKSURI:                           base + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"EdDSA"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic", "none"},
		ScopesSupported:                   []string{"openid", "profile", "email"},
		ClaimsSupported:                   []string{"sub", "iss", "aud", "exp", "iat", "nonce", "email", "given_name", "family_name", "name"},
	})
}
