package oautherr

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// OAuth 2.0 error codes from RFC 6749 and RFC 6750.
const (
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeInvalidScope            = "invalid_scope"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeUnsupportedGrantType    = "unsupported_grant_type"
	CodeAccessDenied            = "access_denied"
	CodeInsufficientScope       = "insufficient_scope"
	CodeServerError             = "server_error"
)

// Error is an OAuth-taxonomy error carried through the service layer and
// rendered as an RFC 6749 body or a redirect-uri error fragment.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// New creates an OAuth error with the given code and description.
func New(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Newf creates an OAuth error with a formatted description.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// From extracts an *Error from err, wrapping anything unexpected as
// server_error so internals never leak to the caller.
func From(err error) *Error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return &Error{Code: CodeServerError, Description: "internal error"}
}

// HTTPStatus maps an error code to the status the token endpoint answers with.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidClient:
		return http.StatusUnauthorized
	case CodeInsufficientScope:
		return http.StatusForbidden
	case CodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// RedirectURL appends error, error_description and state query parameters to
// the client's redirect URI per RFC 6749 section 4.1.2.1.
func (e *Error) RedirectURL(redirectURI, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	q := u.Query()
	q.Set("error", e.Code)
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
