package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"authd/internal/lib/oautherr"
	"authd/internal/services/token"
)

// UserinfoHandlers serves the OIDC userinfo endpoint.
type UserinfoHandlers struct {
	service *token.Token
}

func NewUserinfoHandlers(service *token.Token) *UserinfoHandlers {
	return &UserinfoHandlers{service: service}
}

// Userinfo handles GET and POST /oauth/userinfo.
func (h *UserinfoHandlers) Userinfo(c echo.Context) error {
	ctx := c.Request().Context()

	bearer := bearerToken(c)
	if bearer == "" {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="oauth"`)
		return c.NoContent(http.StatusUnauthorized)
	}

	claims, err := h.service.Userinfo(ctx, bearer)
	if err != nil {
		oerr := oautherr.From(err)
		status := oerr.HTTPStatus()
		if status == http.StatusBadRequest {
			// Bearer-token failures answer 401 per RFC 6750.
			status = http.StatusUnauthorized
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
		}
		return c.JSON(status, oerr)
	}
	return c.JSON(http.StatusOK, claims)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
