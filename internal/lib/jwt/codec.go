package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// KeyStore supplies the codec's active signing keys. The first key carrying
// private material signs new tokens; every key's public half verifies and is
// published through the JWKS document.
type KeyStore interface {
	ActiveKeys(ctx context.Context) ([]models.SigningKey, error)
}

// Codec mints and parses the server's signed tokens. It holds no key
// material of its own; keys are an injected dependency.
type Codec struct {
	issuer string
	keys   KeyStore
}

// NewCodec creates a codec issuing tokens under the given issuer URL.
func NewCodec(issuer string, keys KeyStore) *Codec {
	return &Codec{issuer: issuer, keys: keys}
}

// AccessTokenParams describes an access token to mint. UserID is nil for
// machine tokens issued through client_credentials.
type AccessTokenParams struct {
	ClientID string
	UserID   *string
	Scope    string
	Audience string
	TTL      time.Duration
}

// IDTokenParams describes an ID token to mint. ExtraClaims carries OIDC
// profile claims resolved for the granted scopes; reserved claims in the map
// are ignored.
type IDTokenParams struct {
	ClientID    string
	UserID      string
	Nonce       string
	ExtraClaims map[string]any
	TTL         time.Duration
}

// MintAccessToken signs a bearer access token and returns it with its jti
// and expiry. The jti is persisted separately as revocation metadata.
func (c *Codec) MintAccessToken(ctx context.Context, p AccessTokenParams) (token string, jti string, expiresAt time.Time, err error) {
	key, err := c.signingKey(ctx)
	if err != nil {
		return "", "", time.Time{}, err
	}

	jti = uuid.NewString()
	now := time.Now()
	expiresAt = now.Add(p.TTL)

	sub := p.ClientID
	if p.UserID != nil {
		sub = *p.UserID
	}
	claims := jwt.MapClaims{
		"iss":       c.issuer,
		"sub":       sub,
		"client_id": p.ClientID,
		"scope":     p.Scope,
		"jti":       jti,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	}
	if p.Audience != "" {
		claims["aud"] = p.Audience
	}

	token, err = c.sign(key, claims)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("mint access token: %w", err)
	}
	return token, jti, expiresAt, nil
}

// MintIDToken signs an OIDC ID token. The nonce from the original
// authorization request is embedded verbatim for replay binding.
func (c *Codec) MintIDToken(ctx context.Context, p IDTokenParams) (string, error) {
	key, err := c.signingKey(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": c.issuer,
		"sub": p.UserID,
		"aud": p.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(p.TTL).Unix(),
	}
	if p.Nonce != "" {
		claims["nonce"] = p.Nonce
	}
	for name, value := range p.ExtraClaims {
		if _, reserved := claims[name]; reserved {
			continue
		}
		claims[name] = value
	}

	token, err := c.sign(key, claims)
	if err != nil {
		return "", fmt.Errorf("mint id token: %w", err)
	}
	return token, nil
}

// ParseAndVerify validates a token's signature against the active key set,
// matching by kid, and returns its claims. Expiry is checked by the parser.
func (c *Codec) ParseAndVerify(ctx context.Context, token string) (jwt.MapClaims, error) {
	keys, err := c.keys.ActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load verification keys: %w", err)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		for _, key := range keys {
			if key.KID == kid {
				return key.Public, nil
			}
		}
		return nil, storage.ErrKeyNotFound
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature. Used by
// revocation and introspection to recover the jti of tokens whose signing
// key may have rotated away; the persisted record stays the authority.
func (c *Codec) DecodeUnverified(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) sign(key models.SigningKey, claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = key.KID
	return tok.SignedString(key.Private)
}

func (c *Codec) signingKey(ctx context.Context) (models.SigningKey, error) {
	keys, err := c.keys.ActiveKeys(ctx)
	if err != nil {
		return models.SigningKey{}, fmt.Errorf("load signing keys: %w", err)
	}
	for _, key := range keys {
		if key.CanSign() {
			return key, nil
		}
	}
	return models.SigningKey{}, storage.ErrKeyNotFound
}
