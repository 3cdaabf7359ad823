package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellobroker/internal/http/errors"
	jwtx "github.com/dropDatabas3/hellobroker/internal/jwt"
)

// BearerToken devuelve el token de Authorization: Bearer, o "".
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[7:])
}

// RequireAuth valida el access token y guarda claims y sub en el contexto.
// Refresh e ID tokens se rechazan.
func RequireAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			sub, claims, err := issuer.ParseAccess(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}
			ctx := WithUserID(WithClaims(r.Context(), claims), sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth como RequireAuth pero sin fallar: un token ausente o
// inválido deja el request anónimo.
func OptionalAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := BearerToken(r); raw != "" {
				if sub, claims, err := issuer.ParseAccess(raw); err == nil {
					r = r.WithContext(WithUserID(WithClaims(r.Context(), claims), sub))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
