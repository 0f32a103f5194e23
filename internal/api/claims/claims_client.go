package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider resolves OIDC claims for a user, filtered by the granted scopes.
// The implementation lives in the platform's profile subsystem; this side
// only consumes it.
type Provider interface {
	UserClaims(ctx context.Context, userID string, scopes []string) (map[string]any, error)
}

// Client fetches user claims from the profile service over HTTP.
type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
}

// NewClient initializes a claims client against the given base URL.
func NewClient(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// UserClaims gets the claims object for a user. Scopes are forwarded so the
// profile service can filter what it exposes.
func (c *Client) UserClaims(ctx context.Context, userID string, scopes []string) (map[string]any, error) {
	const op = "claims.UserClaims"

	endpoint := fmt.Sprintf("%s/internal/users/%s/claims?scopes=%s",
		c.baseURL, url.PathEscape(userID), url.QueryEscape(strings.Join(scopes, " ")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("failed to fetch user claims", "error", err, slog.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
