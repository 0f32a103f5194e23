package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authd/internal/domain/models"
	"authd/internal/lib/oautherr"
	"authd/internal/storage"
)

type fakeClients struct {
	clients map[string]*models.Client
}

func (f *fakeClients) Client(_ context.Context, clientID string) (*models.Client, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return nil, storage.ErrClientNotFound
	}
	return client, nil
}

func newTestRegistry(clients ...*models.Client) *Registry {
	byID := make(map[string]*models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	return New(slog.Default(), &fakeClients{clients: byID})
}

func TestResolveClient(t *testing.T) {
	client := &models.Client{ID: "web-app", Name: "Web App"}
	reg := newTestRegistry(client)
	ctx := context.Background()

	got, err := reg.ResolveClient(ctx, "web-app")
	require.NoError(t, err)
	assert.Equal(t, client, got)

	_, err = reg.ResolveClient(ctx, "nope")
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidClient, oautherr.From(err).Code)

	_, err = reg.ResolveClient(ctx, "")
	require.Error(t, err)
	assert.Equal(t, oautherr.CodeInvalidRequest, oautherr.From(err).Code)
}

func TestValidateScopes_AllowedSet(t *testing.T) {
	reg := newTestRegistry()
	client := &models.Client{ID: "svc", AllowedScopes: []string{"inventory:read", "inventory:write"}}

	result := reg.ValidateScopes([]string{"inventory:read"}, client, "authorization_code")
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"inventory:read"}, result.Scopes)

	result = reg.ValidateScopes([]string{"inventory:read", "admin"}, client, "authorization_code")
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "admin")
}

func TestValidateScopes_OIDCForVerifiedClients(t *testing.T) {
	reg := newTestRegistry()

	verified := &models.Client{ID: "v", IsVerified: true}
	result := reg.ValidateScopes([]string{"openid", "profile"}, verified, "authorization_code")
	assert.True(t, result.Valid)

	unverified := &models.Client{ID: "u"}
	result = reg.ValidateScopes([]string{"openid"}, unverified, "authorization_code")
	assert.False(t, result.Valid)
}

func TestValidateScopes_MachineClientsGetNoIdentityScopes(t *testing.T) {
	reg := newTestRegistry()
	client := &models.Client{
		ID:            "svc",
		IsVerified:    true,
		AllowedScopes: []string{"openid", "inventory:read"},
	}

	result := reg.ValidateScopes([]string{"openid", "inventory:read"}, client, "client_credentials")
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "machine clients")

	result = reg.ValidateScopes([]string{"inventory:read"}, client, "client_credentials")
	assert.True(t, result.Valid)
}

func TestScopeHelpers(t *testing.T) {
	assert.Equal(t, []string{"openid", "email"}, ParseScope("openid  email"))
	assert.Empty(t, ParseScope(""))
	assert.Equal(t, "openid email", JoinScope([]string{"openid", "email"}))

	assert.True(t, Subset([]string{"a"}, []string{"a", "b"}))
	assert.False(t, Subset([]string{"a", "c"}, []string{"a", "b"}))
	assert.True(t, Subset(nil, nil))
}
