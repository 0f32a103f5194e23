package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"authd/internal/http/handlers"
	"authd/internal/lib/jwt"
	"authd/internal/services/authorize"
	"authd/internal/services/token"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Issuer     string
	LoginURL   string
	ConsentURL string
	Codec      *jwt.Codec
	Authorize  *authorize.Authorize
	Token      *token.Token
}

// NewRouter builds the echo instance with all OAuth endpoints mounted.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	wellKnown := handlers.NewWellKnownHandlers(deps.Issuer, deps.Codec)
	auth := handlers.NewAuthorizeHandlers(deps.Authorize, deps.LoginURL, deps.ConsentURL)
	tokens := handlers.NewTokenHandlers(deps.Token)
	userinfo := handlers.NewUserinfoHandlers(deps.Token)

	e.GET("/.well-known/openid-configuration", wellKnown.Discovery)
	e.GET("/.well-known/jwks.json", wellKnown.JWKS)

	e.GET("/oauth/authorize", auth.Authorize)
	e.POST("/oauth/authorize", auth.Authorize)
	e.GET("/oauth/authorize/consent", auth.ConsentPrompt)
	e.POST("/oauth/authorize/consent", auth.Consent)

	e.POST("/oauth/token", tokens.Token)
	e.POST("/oauth/revoke", tokens.Revoke)
	e.POST("/oauth/introspect", tokens.Introspect)

	e.GET("/oauth/userinfo", userinfo.Userinfo)
	e.POST("/oauth/userinfo", userinfo.Userinfo)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
