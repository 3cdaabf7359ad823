package jwt

import (
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKS arma el set público (activa + retiradas) para /.well-known/jwks.json.
func (i *Issuer) JWKS() (jwk.Set, error) {
	set := jwk.NewSet()
	for _, k := range i.Keys.Keys() {
		pk, err := jwk.FromRaw(k.Pub)
		if err != nil {
			return nil, fmt.Errorf("jwk from raw: %w", err)
		}
		_ = pk.Set(jwk.KeyIDKey, k.KID)
		_ = pk.Set(jwk.AlgorithmKey, jwa.EdDSA)
		_ = pk.Set(jwk.KeyUsageKey, "sig")
		if err := set.AddKey(pk); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// JWKSJSON serializa JWKS.
func (i *Issuer) JWKSJSON() ([]byte, error) {
	set, err := i.JWKS()
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}
