package interfaces

import (
	"context"

	"authd/internal/domain/models"
)

// AuthRequestStorage keeps the ephemeral authorization-request records.
type AuthRequestStorage interface {
	SaveAuthRequest(ctx context.Context, request *models.AuthorizationRequest) error
	AuthRequest(ctx context.Context, requestID string) (*models.AuthorizationRequest, error)
	UpdateAuthRequest(ctx context.Context, request *models.AuthorizationRequest) error
}

// AuthCodeStorage persists minted authorization codes.
type AuthCodeStorage interface {
	SaveAuthCode(ctx context.Context, code *models.AuthorizationCode) error
}

// ConsentStorage accumulates per-(user, client) granted scopes.
type ConsentStorage interface {
	Consent(ctx context.Context, userID, clientID string) (*models.Consent, error)
	SaveConsent(ctx context.Context, userID, clientID string, grantedScopes []string) error
}
