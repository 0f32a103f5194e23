package models

import "crypto/rsa"

// SigningKey is one RS256 key pair held by a key store. Private may be nil
// for bootstrap keys derived from a configured public PEM, which can verify
// and serve JWKS but never sign.
type SigningKey struct {
	KID     string
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// CanSign reports whether the key carries private material.
func (k SigningKey) CanSign() bool {
	return k.Private != nil
}
