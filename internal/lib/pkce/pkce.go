package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// MethodS256 is the only code challenge method accepted end-to-end.
// "plain" is rejected at authorize time and never reaches verification.
const MethodS256 = "S256"

const (
	// RFC 7636 section 4.1 bounds on the code verifier length.
	minVerifierLength = 43
	maxVerifierLength = 128
)

// Challenge computes the S256 code challenge for a verifier:
// base64url(SHA256(verifier)) without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidVerifier reports whether the verifier satisfies the RFC 7636 length bounds.
func ValidVerifier(verifier string) bool {
	return len(verifier) >= minVerifierLength && len(verifier) <= maxVerifierLength
}

// Verify checks a code verifier against the stored S256 challenge. A length
// mismatch between the computed and stored challenge short-circuits to false;
// equal-length hashes are compared in constant time. Any method other than
// S256 fails.
func Verify(verifier, storedChallenge, method string) bool {
	if method != MethodS256 || storedChallenge == "" {
		return false
	}
	computed := Challenge(verifier)
	if len(computed) != len(storedChallenge) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}
