// Package jwt firma y valida los tokens del broker (EdDSA / Ed25519).
package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Valores del claim "typ" que separan los tres tipos de token.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeID      = "id"
)

// Issuer firma tokens con la clave activa del keyring.
type Issuer struct {
	Iss        string
	Keys       *Keyring
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	IDTTL      time.Duration

	now func() time.Time
}

func NewIssuer(iss string, keys *Keyring) *Issuer {
	return &Issuer{
		Iss:        iss,
		Keys:       keys,
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		IDTTL:      time.Hour,
		now:        time.Now,
	}
}

// SetClock reemplaza el reloj (tests).
func (i *Issuer) SetClock(now func() time.Time) { i.now = now }

// SignRaw firma claims arbitrarios con header kid/typ.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	key, err := i.Keys.Active()
	if err != nil {
		return "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = key.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key.Priv)
}

func (i *Issuer) base(sub, typ string, ttl time.Duration) (jwtv5.MapClaims, time.Time) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	return jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"typ": typ,
	}, exp
}

// IssueAccess emite un access token. aud es opcional.
func (i *Issuer) IssueAccess(sub, aud string, scopes []string) (string, time.Time, error) {
	claims, exp := i.base(sub, TypeAccess, i.AccessTTL)
	if aud != "" {
		claims["aud"] = aud
	}
	if len(scopes) > 0 {
		claims["scp"] = scopes
	}
	signed, err := i.SignRaw(claims)
	return signed, exp, err
}

// IssueRefresh emite un refresh token firmado con jti aleatorio; el valor
// completo solo se persiste como hash.
func (i *Issuer) IssueRefresh(sub string) (string, time.Time, error) {
	claims, exp := i.base(sub, TypeRefresh, i.RefreshTTL)
	claims["jti"] = uuid.NewString()
	signed, err := i.SignRaw(claims)
	return signed, exp, err
}

// IssueIDToken emite un ID token OIDC; extra agrega claims de identidad.
func (i *Issuer) IssueIDToken(sub, aud string, extra map[string]any) (string, time.Time, error) {
	claims, exp := i.base(sub, TypeID, i.IDTTL)
	claims["aud"] = aud
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := i.SignRaw(claims)
	return signed, exp, err
}
