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

const authCodeColumns = `code, request_id, client_id, user_id, redirect_uri, scope,
	nonce, code_challenge, code_challenge_method, expires_at, used_at`

// AuthCodeRepository persists single-use authorization codes between the
// authorize and token endpoints.
type AuthCodeRepository struct {
	db postgres.DB
}

// NewAuthCodeRepository creates new instance of AuthCodeRepository
func NewAuthCodeRepository(db postgres.DB) *AuthCodeRepository {
	return &AuthCodeRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *AuthCodeRepository) WithTx(tx pgx.Tx) *AuthCodeRepository {
	return &AuthCodeRepository{db: tx}
}

// SaveAuthCode inserts a freshly minted models.AuthorizationCode. The unique
// constraint on code is the store-level replay guard.
func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, code *models.AuthorizationCode) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO authorization_codes (`+authCodeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)`,
		code.Code,
		code.RequestID,
		code.ClientID,
		code.UserID,
		code.RedirectURI,
		code.Scope,
		code.Nonce,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// ClaimAuthCode atomically marks the code used and returns it. A conditional
// update guarantees at most one winner; the losing call gets
// storage.ErrAuthCodeUsed together with the stored record so the caller can
// treat it as a reuse event.
func (r *AuthCodeRepository) ClaimAuthCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	claimed, err := r.scanAuthCode(r.db.QueryRow(
		ctx,
		`UPDATE authorization_codes SET used_at = now()
		 WHERE code = $1 AND used_at IS NULL
		 RETURNING `+authCodeColumns,
		code,
	))
	if err == nil {
		return claimed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim authorization code: %w", err)
	}

	// No row claimed: either unknown or already used.
	existing, err := r.scanAuthCode(r.db.QueryRow(
		ctx,
		`SELECT `+authCodeColumns+` FROM authorization_codes WHERE code = $1`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrAuthCodeNotFound
		}
		return nil, fmt.Errorf("failed to query authorization code: %w", err)
	}
	return existing, storage.ErrAuthCodeUsed
}

func (r *AuthCodeRepository) scanAuthCode(row pgx.Row) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	err := row.Scan(
		&code.Code,
		&code.RequestID,
		&code.ClientID,
		&code.UserID,
		&code.RedirectURI,
		&code.Scope,
		&code.Nonce,
		&code.CodeChallenge,
		&code.CodeChallengeMethod,
		&code.ExpiresAt,
		&code.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &code, nil
}
