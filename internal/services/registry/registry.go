package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"authd/internal/domain/models"
	"authd/internal/lib/oautherr"
	"authd/internal/services/registry/interfaces"
	"authd/internal/storage"
)

// Fixed OIDC scopes always available to OIDC-capable (verified) clients.
var oidcScopes = map[string]string{
	"openid":         "Establish your identity",
	"profile":        "Read your basic profile",
	"email":          "Read your email address",
	"offline_access": "Keep access while you are away",
}

// Identity scopes a machine client must never hold: a client_credentials
// token represents no human subject.
var identityScopes = []string{"openid", "profile", "email"}

// Registry validates requested scopes against a client's allowed set and
// resolves clients and static OIDC scope metadata.
type Registry struct {
	log     *slog.Logger
	clients interfaces.ClientProvider
}

// New returns a new instance of the Registry service
func New(log *slog.Logger, clients interfaces.ClientProvider) *Registry {
	return &Registry{log: log, clients: clients}
}

// ResolveClient gets the client record or an invalid_client error.
func (r *Registry) ResolveClient(ctx context.Context, clientID string) (*models.Client, error) {
	const op = "registry.ResolveClient"
	if clientID == "" {
		return nil, oautherr.New(oautherr.CodeInvalidRequest, "client_id is required")
	}
	client, err := r.clients.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrClientNotFound) {
			return nil, oautherr.Newf(oautherr.CodeInvalidClient, "unknown client %q", clientID)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// ScopeValidation is the outcome of validating a requested scope set.
type ScopeValidation struct {
	Valid  bool
	Scopes []string
	Errors []string
}

// ValidateScopes checks every requested scope against the client's allowed
// set. A scope passes if the client lists it, or if it is a fixed OIDC scope
// and the client is verified. The whole request is invalid if any single
// scope fails. grantType client_credentials additionally forbids the
// identity scopes.
func (r *Registry) ValidateScopes(requested []string, client *models.Client, grantType string) ScopeValidation {
	result := ScopeValidation{Valid: true}
	for _, scope := range requested {
		if grantType == "client_credentials" && slices.Contains(identityScopes, scope) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("scope %q is not permitted for machine clients", scope))
			continue
		}
		if slices.Contains(client.AllowedScopes, scope) {
			result.Scopes = append(result.Scopes, scope)
			continue
		}
		if _, isOIDC := oidcScopes[scope]; isOIDC && client.IsVerified {
			result.Scopes = append(result.Scopes, scope)
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("scope %q is not allowed for this client", scope))
	}
	return result
}

// DescribeScope resolves the static metadata of an OIDC scope. The second
// return value is false for scopes that carry no fixed description.
func (r *Registry) DescribeScope(scope string) (string, bool) {
	description, ok := oidcScopes[scope]
	return description, ok
}

// ParseScope splits a space-delimited scope parameter into its members.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope joins scope members back into the wire format.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Subset reports whether every member of requested is present in granted.
func Subset(requested, granted []string) bool {
	for _, scope := range requested {
		if !slices.Contains(granted, scope) {
			return false
		}
	}
	return true
}
