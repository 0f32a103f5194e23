package pkce

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validVerifier() string {
	return gofakeit.LetterN(64)
}

func TestVerify_HappyPath(t *testing.T) {
	verifier := validVerifier()
	challenge := Challenge(verifier)

	require.True(t, Verify(verifier, challenge, MethodS256))
}

func TestVerify_WrongVerifier(t *testing.T) {
	challenge := Challenge(validVerifier())

	assert.False(t, Verify(validVerifier(), challenge, MethodS256))
}

func TestVerify_RejectsPlainMethod(t *testing.T) {
	verifier := validVerifier()

	assert.False(t, Verify(verifier, verifier, "plain"))
	assert.False(t, Verify(verifier, Challenge(verifier), "plain"))
	assert.False(t, Verify(verifier, Challenge(verifier), ""))
}

func TestVerify_EmptyChallenge(t *testing.T) {
	assert.False(t, Verify(validVerifier(), "", MethodS256))
}

func TestValidVerifier_Bounds(t *testing.T) {
	assert.False(t, ValidVerifier(strings.Repeat("a", 42)))
	assert.True(t, ValidVerifier(strings.Repeat("a", 43)))
	assert.True(t, ValidVerifier(strings.Repeat("a", 128)))
	assert.False(t, ValidVerifier(strings.Repeat("a", 129)))
}

func TestChallenge_NoPadding(t *testing.T) {
	challenge := Challenge(validVerifier())

	assert.NotContains(t, challenge, "=")
	assert.NotContains(t, challenge, "+")
	assert.NotContains(t, challenge, "/")
}
