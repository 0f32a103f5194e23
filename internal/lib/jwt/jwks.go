package jwt

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
)

// JWKS builds the public JWK set for the active keys. Only public key
// material ever enters the document.
func (c *Codec) JWKS(ctx context.Context) (jwk.Set, error) {
	keys, err := c.keys.ActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keys for jwks: %w", err)
	}

	set := jwk.NewSet()
	for _, key := range keys {
		jwkKey, err := jwk.New(key.Public)
		if err != nil {
			return nil, fmt.Errorf("convert key %s to jwk: %w", key.KID, err)
		}
		_ = jwkKey.Set(jwk.KeyIDKey, key.KID)
		_ = jwkKey.Set(jwk.AlgorithmKey, jwa.RS256)
		_ = jwkKey.Set(jwk.KeyUsageKey, "sig")
		set.Add(jwkKey)
	}
	return set, nil
}
