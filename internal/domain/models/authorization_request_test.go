package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRequestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    AuthRequestStatus
		to      AuthRequestStatus
		allowed bool
	}{
		{"pending to consented", AuthRequestPending, AuthRequestConsented, true},
		{"pending to denied", AuthRequestPending, AuthRequestDenied, true},
		{"pending to expired", AuthRequestPending, AuthRequestExpired, true},
		{"consented to used", AuthRequestConsented, AuthRequestUsed, true},
		{"pending to used", AuthRequestPending, AuthRequestUsed, false},
		{"consented to denied", AuthRequestConsented, AuthRequestDenied, false},
		{"denied is terminal", AuthRequestDenied, AuthRequestConsented, false},
		{"expired is terminal", AuthRequestExpired, AuthRequestConsented, false},
		{"used is terminal", AuthRequestUsed, AuthRequestConsented, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestAuthorizationRequest_Transition(t *testing.T) {
	req := &AuthorizationRequest{Status: AuthRequestPending}

	require.NoError(t, req.Transition(AuthRequestConsented))
	assert.Equal(t, AuthRequestConsented, req.Status)

	require.NoError(t, req.Transition(AuthRequestUsed))
	assert.Equal(t, AuthRequestUsed, req.Status)

	err := req.Transition(AuthRequestConsented)
	require.Error(t, err)
	assert.Equal(t, AuthRequestUsed, req.Status)
}

func TestAuthorizationRequest_Expired(t *testing.T) {
	now := time.Now()
	req := &AuthorizationRequest{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, req.Expired(now))
	assert.True(t, req.Expired(now.Add(2*time.Minute)))
}

func TestAuthRequestStatus_Terminal(t *testing.T) {
	assert.False(t, AuthRequestPending.Terminal())
	assert.False(t, AuthRequestConsented.Terminal())
	assert.True(t, AuthRequestDenied.Terminal())
	assert.True(t, AuthRequestExpired.Terminal())
	assert.True(t, AuthRequestUsed.Terminal())
}
