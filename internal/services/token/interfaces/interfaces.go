package interfaces

import (
	"context"

	"github.com/google/uuid"

	"authd/internal/domain/models"
)

// TokenStorage is the transactional persistence surface for grants,
// revocation and introspection. ExchangeAuthCode and RotateRefreshToken run
// the claim, the issue callback and the resulting inserts in one
// transaction: an error from the callback rolls the claim back, so a failed
// validation never burns a code or strands a rotation without a successor.
// Both return the claimed record alongside the error so reuse sentinels can
// be acted on.
type TokenStorage interface {
	ExchangeAuthCode(ctx context.Context, code string, issue func(code *models.AuthorizationCode) (*models.AccessToken, *models.RefreshToken, error)) (*models.AuthorizationCode, error)
	RotateRefreshToken(ctx context.Context, tokenHash string, issue func(old *models.RefreshToken) (*models.RefreshToken, *models.AccessToken, error)) (*models.RefreshToken, error)
	IssueTokens(ctx context.Context, access *models.AccessToken, refresh *models.RefreshToken) error
	AccessToken(ctx context.Context, jti string) (*models.AccessToken, error)
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeAccessToken(ctx context.Context, jti string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error)
	RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error)
	RevokeUserClientTokens(ctx context.Context, userID, clientID string) (int64, error)
	RevokeUserClientRefreshTokens(ctx context.Context, userID, clientID string) (int64, error)
}

// AuthRequestStorage closes the loop on redeemed authorization requests.
type AuthRequestStorage interface {
	AuthRequest(ctx context.Context, requestID string) (*models.AuthorizationRequest, error)
	UpdateAuthRequest(ctx context.Context, request *models.AuthorizationRequest) error
}

// ClaimsProvider resolves OIDC profile claims for a user, filtered by the
// granted scopes.
type ClaimsProvider interface {
	UserClaims(ctx context.Context, userID string, scopes []string) (map[string]any, error)
}
