package models

import "slices"

// Client is an OAuth application registered on the platform.
// Records are owned by the client-management subsystem and are immutable
// within a single request.
type Client struct {
	ID               string   `json:"client_id" db:"id"`
	Name             string   `json:"name" db:"name"`
	SecretHash       []byte   `json:"-" db:"secret_hash"`
	RedirectURIs     []string `json:"redirect_uris" db:"redirect_uris"`
	ResponseTypes    []string `json:"response_types" db:"response_types"`
	GrantTypes       []string `json:"grant_types" db:"grant_types"`
	AllowedScopes    []string `json:"allowed_scopes" db:"allowed_scopes"`
	AllowedAudiences []string `json:"allowed_audiences" db:"allowed_audiences"`
	IsPublic         bool     `json:"is_public" db:"is_public"`
	IsConfidential   bool     `json:"is_confidential" db:"is_confidential"`
	IsVerified       bool     `json:"is_verified" db:"is_verified"`
	IsTrusted        bool     `json:"is_trusted" db:"is_trusted"`
}

// AllowsRedirectURI reports whether uri exactly matches one of the client's
// registered redirect URIs. No prefix or wildcard matching.
func (c *Client) AllowsRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// AllowsResponseType reports whether the client may use the given response type.
func (c *Client) AllowsResponseType(responseType string) bool {
	return slices.Contains(c.ResponseTypes, responseType)
}

// AllowsAudience reports whether aud may be requested by the client.
// An empty allowed list permits any audience.
func (c *Client) AllowsAudience(aud string) bool {
	if len(c.AllowedAudiences) == 0 {
		return true
	}
	return slices.Contains(c.AllowedAudiences, aud)
}
