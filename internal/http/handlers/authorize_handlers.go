package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"authd/internal/lib/oautherr"
	"authd/internal/services/authorize"
)

// AuthorizeHandlers serves the authorization endpoint and the consent
// prompt and submission endpoints.
type AuthorizeHandlers struct {
	service    *authorize.Authorize
	loginURL   string
	consentURL string
}

func NewAuthorizeHandlers(service *authorize.Authorize, loginURL, consentURL string) *AuthorizeHandlers {
	return &AuthorizeHandlers{service: service, loginURL: loginURL, consentURL: consentURL}
}

// Authorize handles GET and POST /oauth/authorize. Errors before the
// redirect URI is trusted are rendered directly; everything later is
// delivered to the client by redirect.
func (h *AuthorizeHandlers) Authorize(c echo.Context) error {
	ctx := c.Request().Context()

	params := authorize.CreateParams{
		ResponseType:        formOrQuery(c, "response_type"),
		ClientID:            formOrQuery(c, "client_id"),
		RedirectURI:         formOrQuery(c, "redirect_uri"),
		Scope:               formOrQuery(c, "scope"),
		State:               formOrQuery(c, "state"),
		Nonce:               formOrQuery(c, "nonce"),
		CodeChallenge:       formOrQuery(c, "code_challenge"),
		CodeChallengeMethod: formOrQuery(c, "code_challenge_method"),
	}

	decision, err := h.service.Begin(ctx, params, authenticatedUser(c))
	if err != nil {
		oerr := oautherr.From(err)
		return c.JSON(oerr.HTTPStatus(), oerr)
	}

	switch decision.Kind {
	case authorize.DecisionLogin:
		return c.Redirect(http.StatusFound, h.continueURL(h.loginURL, decision.Request.ID))
	case authorize.DecisionConsent:
		return c.Redirect(http.StatusFound, h.continueURL(h.consentURL, decision.Request.ID))
	default:
		return c.Redirect(http.StatusFound, decision.RedirectURL)
	}
}

// ConsentPrompt handles GET /oauth/authorize/consent: the consent page
// fetches the pending request's client and scope descriptions to render.
func (h *AuthorizeHandlers) ConsentPrompt(c echo.Context) error {
	prompt, err := h.service.ConsentPrompt(c.Request().Context(), c.QueryParam("request_id"))
	if err != nil {
		oerr := oautherr.From(err)
		return c.JSON(oerr.HTTPStatus(), oerr)
	}
	return c.JSON(http.StatusOK, prompt)
}

// ConsentRequest is a consent-UI submission.
type ConsentRequest struct {
	RequestID string   `json:"request_id" form:"request_id"`
	Action    string   `json:"action" form:"action"`
	Scopes    []string `json:"scopes" form:"scopes"`
}

// Consent handles POST /oauth/consent. Browser form posts get a 302 back to
// the client; JSON callers get the redirect URL in the body.
func (h *AuthorizeHandlers) Consent(c echo.Context) error {
	ctx := c.Request().Context()

	var req ConsentRequest
	if err := c.Bind(&req); err != nil {
		oerr := oautherr.New(oautherr.CodeInvalidRequest, "malformed consent submission")
		return c.JSON(oerr.HTTPStatus(), oerr)
	}

	redirect, err := h.service.Consent(ctx, authorize.ConsentParams{
		RequestID: req.RequestID,
		UserID:    authenticatedUser(c),
		Action:    req.Action,
		Scopes:    req.Scopes,
	})
	if err != nil {
		oerr := oautherr.From(err)
		return c.JSON(oerr.HTTPStatus(), oerr)
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"redirectUrl": redirect})
	}
	return c.Redirect(http.StatusFound, redirect)
}

// continueURL points the UI back at this authorization request.
func (h *AuthorizeHandlers) continueURL(base, requestID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("request_id", requestID)
	u.RawQuery = q.Encode()
	return u.String()
}

func formOrQuery(c echo.Context, name string) string {
	if v := c.FormValue(name); v != "" {
		return v
	}
	return c.QueryParam(name)
}

func wantsJSON(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(accept, echo.MIMEApplicationJSON) ||
		strings.HasPrefix(contentType, echo.MIMEApplicationJSON)
}
