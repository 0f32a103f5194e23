package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage"
	"authd/internal/storage/postgres"
)

const refreshTokenColumns = `token_hash, client_id, user_id, scope, family_id,
	generation, issued_at, expires_at, rotated_at, revoked_at`

// RefreshTokenRepository persists hashed refresh tokens and their rotation
// families. The unique constraint on token_hash plus the conditional claim
// update keep a single active generation per family.
type RefreshTokenRepository struct {
	db postgres.DB
}

// NewRefreshTokenRepository creates new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db postgres.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *RefreshTokenRepository) WithTx(tx pgx.Tx) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: tx}
}

// SaveRefreshToken inserts a new refresh token record.
func (r *RefreshTokenRepository) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO refresh_tokens (token_hash, client_id, user_id, scope, family_id, generation, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.TokenHash,
		token.ClientID,
		token.UserID,
		token.Scope,
		token.FamilyID,
		token.Generation,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// RefreshTokenByHash looks a token up by its stored hash.
func (r *RefreshTokenRepository) RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	token, err := r.scanRefreshToken(r.db.QueryRow(
		ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}
	return token, nil
}

// ClaimRefreshToken atomically marks the token rotated and returns it. Only
// one concurrent redemption can win; a token that was already rotated comes
// back with storage.ErrTokenRotated so the caller can treat the presentation
// as a reuse event, and a revoked one with storage.ErrTokenRevoked.
func (r *RefreshTokenRepository) ClaimRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	claimed, err := r.scanRefreshToken(r.db.QueryRow(
		ctx,
		`UPDATE refresh_tokens SET rotated_at = now()
		 WHERE token_hash = $1 AND rotated_at IS NULL AND revoked_at IS NULL
		 RETURNING `+refreshTokenColumns,
		tokenHash,
	))
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim refresh token: %w", err)
	}

	existing, err := r.RefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if existing.RevokedAt != nil {
		return existing, storage.ErrTokenRevoked
	}
	return existing, storage.ErrTokenRotated
}

// RevokeFamily revokes every not yet revoked token in the family. Returns
// the number of tokens touched.
func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE family_id = $1 AND revoked_at IS NULL`,
		familyID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke token family: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RevokeRefreshToken revokes a single token by hash. Unknown hashes are a
// no-op so the revocation endpoint stays oracle-free.
func (r *RefreshTokenRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeUserClientRefreshTokens revokes every live token the client holds
// for the user, across families.
func (r *RefreshTokenRepository) RevokeUserClientRefreshTokens(ctx context.Context, userID, clientID string) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE user_id = $1 AND client_id = $2 AND revoked_at IS NULL`,
		userID, clientID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes tokens whose lifetime ended before the cutoff.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RefreshTokenRepository) scanRefreshToken(row pgx.Row) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := row.Scan(
		&token.TokenHash,
		&token.ClientID,
		&token.UserID,
		&token.Scope,
		&token.FamilyID,
		&token.Generation,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.RotatedAt,
		&token.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &token, nil
}
