package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"authd/internal/lib/oautherr"
	"authd/internal/services/token"
)

// TokenHandlers serves the token, revocation and introspection endpoints.
type TokenHandlers struct {
	service *token.Token
}

func NewTokenHandlers(service *token.Token) *TokenHandlers {
	return &TokenHandlers{service: service}
}

// Token handles POST /oauth/token.
func (h *TokenHandlers) Token(c echo.Context) error {
	ctx := c.Request().Context()

	client, err := h.service.AuthenticateClient(ctx, clientCredentials(c))
	if err != nil {
		return tokenError(c, err)
	}

	resp, err := h.service.Exchange(ctx, client, token.ExchangeParams{
		GrantType:    c.FormValue("grant_type"),
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		CodeVerifier: c.FormValue("code_verifier"),
		RefreshToken: c.FormValue("refresh_token"),
		Scope:        c.FormValue("scope"),
		Audience:     c.FormValue("audience"),
	})
	if err != nil {
		return tokenError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.JSON(http.StatusOK, resp)
}

// Revoke handles POST /oauth/revoke. Per RFC 7009 the endpoint answers 200
// regardless of whether the token existed.
func (h *TokenHandlers) Revoke(c echo.Context) error {
	ctx := c.Request().Context()

	client, err := h.service.AuthenticateClient(ctx, clientCredentials(c))
	if err != nil {
		return tokenError(c, err)
	}

	if err := h.service.Revoke(ctx, client, c.FormValue("token")); err != nil {
		return tokenError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Introspect handles POST /oauth/introspect.
func (h *TokenHandlers) Introspect(c echo.Context) error {
	ctx := c.Request().Context()

	client, err := h.service.AuthenticateClient(ctx, clientCredentials(c))
	if err != nil {
		return tokenError(c, err)
	}

	result, err := h.service.Introspect(ctx, client, c.FormValue("token"))
	if err != nil {
		return tokenError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// clientCredentials extracts client authentication from Basic auth or,
// failing that, from the form body.
func clientCredentials(c echo.Context) token.Credentials {
	if id, secret, ok := c.Request().BasicAuth(); ok {
		return token.Credentials{ClientID: id, ClientSecret: secret}
	}
	return token.Credentials{
		ClientID:     c.FormValue("client_id"),
		ClientSecret: c.FormValue("client_secret"),
	}
}

func tokenError(c echo.Context, err error) error {
	oerr := oautherr.From(err)
	if oerr.Code == oautherr.CodeInvalidClient {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="oauth"`)
	}
	return c.JSON(oerr.HTTPStatus(), oerr)
}
