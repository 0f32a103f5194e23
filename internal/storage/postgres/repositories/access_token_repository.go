package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
	"authd/internal/storage/postgres"
)

// AccessTokenRepository persists access-token metadata keyed by jti. The
// records serve introspection and revocation; bearer validation itself is
// stateless.
type AccessTokenRepository struct {
	db postgres.DB
}

// NewAccessTokenRepository creates new instance of AccessTokenRepository
func NewAccessTokenRepository(db postgres.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *AccessTokenRepository) WithTx(tx pgx.Tx) *AccessTokenRepository {
	return &AccessTokenRepository{db: tx}
}

// SaveAccessToken inserts the metadata row minted alongside a bearer token.
func (r *AccessTokenRepository) SaveAccessToken(ctx context.Context, token *models.AccessToken) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO access_tokens (jti, client_id, user_id, scope, grant_type, audience, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.JTI,
		token.ClientID,
		token.UserID,
		token.Scope,
		token.GrantType,
		token.Audience,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save access token metadata: %w", err)
	}
	return nil
}

// AccessToken gets token metadata by jti.
func (r *AccessTokenRepository) AccessToken(ctx context.Context, jti string) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.QueryRow(
		ctx,
		`SELECT jti, client_id, user_id, scope, grant_type, audience, issued_at, expires_at, revoked_at
		 FROM access_tokens WHERE jti = $1`,
		jti,
	).Scan(
		&token.JTI,
		&token.ClientID,
		&token.UserID,
		&token.Scope,
		&token.GrantType,
		&token.Audience,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to query access token metadata: %w", err)
	}
	return &token, nil
}

// RevokeAccessToken marks the token revoked. Revoking an already revoked or
// unknown jti is a no-op.
func (r *AccessTokenRepository) RevokeAccessToken(ctx context.Context, jti string) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE access_tokens SET revoked_at = now() WHERE jti = $1 AND revoked_at IS NULL`,
		jti,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

// RevokeUserClientTokens revokes every live access token issued to the given
// user and client pair. Used when code or refresh reuse is detected.
func (r *AccessTokenRepository) RevokeUserClientTokens(ctx context.Context, userID, clientID string) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE access_tokens SET revoked_at = now()
		 WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL`,
		userID,
		clientID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
