package handlers

import "github.com/labstack/echo/v4"

// First-party login lives in a separate service that fronts this one; it
// forwards the authenticated subject in this header after validating the
// session cookie. An empty value means no authenticated user.
const userHeader = "X-Authenticated-User"

func authenticatedUser(c echo.Context) string {
	return c.Request().Header.Get(userHeader)
}
