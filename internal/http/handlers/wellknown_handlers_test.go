package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	"authd/internal/lib/jwt"
	"authd/internal/storage/keys"
)

func newTestCodec(t *testing.T) *jwt.Codec {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwt.NewCodec("https://auth.example.test", keys.NewInMemory(models.SigningKey{
		KID:     "test-key",
		Private: private,
		Public:  &private.PublicKey,
	}))
}

func TestDiscovery(t *testing.T) {
	h := NewWellKnownHandlers("https://auth.example.test/", newTestCodec(t))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Discovery(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "https://auth.example.test", doc["issuer"])
	assert.Equal(t, "https://auth.example.test/oauth/authorize", doc["authorization_endpoint"])
	assert.Equal(t, "https://auth.example.test/oauth/token", doc["token_endpoint"])
	assert.Equal(t, "https://auth.example.test/.well-known/jwks.json", doc["jwks_uri"])
	assert.ElementsMatch(t, []any{"S256"}, doc["code_challenge_methods_supported"])
	assert.ElementsMatch(t, []any{"code"}, doc["response_types_supported"])
}

func TestJWKS(t *testing.T) {
	h := NewWellKnownHandlers("https://auth.example.test", newTestCodec(t))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.JWKS(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "test-key", doc.Keys[0]["kid"])
	assert.Equal(t, "RS256", doc.Keys[0]["alg"])
	assert.Equal(t, "sig", doc.Keys[0]["use"])
	// Private material never leaves through the JWKS document.
	assert.NotContains(t, doc.Keys[0], "d")
}
