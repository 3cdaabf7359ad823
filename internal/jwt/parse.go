package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid_jwt")
	ErrWrongTokenTyp = errors.New("wrong_token_type")
)

// Keyfunc elige la pública por kid; sin kid usa la activa.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" {
			return i.Keys.PublicKey(kid)
		}
		key, err := i.Keys.Active()
		if err != nil {
			return nil, err
		}
		return key.Pub, nil
	}
}

// Parse valida firma, iss, exp/nbf (30s de tolerancia) y el claim typ.
func (i *Issuer) Parse(raw, wantTyp string) (jwtv5.MapClaims, error) {
	tok, err := jwtv5.Parse(raw, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithLeeway(30*time.Second),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if wantTyp != "" {
		if typ, _ := claims["typ"].(string); typ != wantTyp {
			return nil, ErrWrongTokenTyp
		}
	}
	return claims, nil
}

// ParseAccess valida un access token y devuelve el sub.
func (i *Issuer) ParseAccess(raw string) (string, jwtv5.MapClaims, error) {
	claims, err := i.Parse(raw, TypeAccess)
	if err != nil {
		return "", nil, err
	}
	sub, _ := claims.GetSubject()
	if sub == "" {
		return "", nil, ErrInvalidToken
	}
	return sub, claims, nil
}
