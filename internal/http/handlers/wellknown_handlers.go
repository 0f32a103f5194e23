package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"authd/internal/lib/jwt"
)

// WellKnownHandlers serves OIDC discovery and the JWKS document.
type WellKnownHandlers struct {
	issuer string
	codec  *jwt.Codec
}

func NewWellKnownHandlers(issuer string, codec *jwt.Codec) *WellKnownHandlers {
	return &WellKnownHandlers{issuer: strings.TrimRight(issuer, "/"), codec: codec}
}

// discoveryDocument is the OIDC provider metadata, RFC 8414 / OIDC Discovery.
type discoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// Discovery handles GET /.well-known/openid-configuration.
func (h *WellKnownHandlers) Discovery(c echo.Context) error {
	doc := discoveryDocument{
		Issuer:                            h.issuer,
		AuthorizationEndpoint:             h.issuer + "/oauth/authorize",
		TokenEndpoint:                     h.issuer + "/oauth/token",
		UserinfoEndpoint:                  h.issuer + "/oauth/userinfo",
		JWKSURI:                           h.issuer + "/.well-known/jwks.json",
		RevocationEndpoint:                h.issuer + "/oauth/revoke",
		IntrospectionEndpoint:             h.issuer + "/oauth/introspect",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token", "client_credentials"},
		ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
	}
	return c.JSON(http.StatusOK, doc)
}

// JWKS handles GET /.well-known/jwks.json.
func (h *WellKnownHandlers) JWKS(c echo.Context) error {
	set, err := h.codec.JWKS(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "signing keys unavailable")
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	return c.JSON(http.StatusOK, set)
}
