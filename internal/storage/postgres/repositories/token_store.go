package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"authd/internal/domain/models"
	"authd/internal/storage/postgres"
)

// TokenStore groups the token repositories behind transactional operations
// so a grant either lands completely or not at all.
type TokenStore struct {
	storage *postgres.Storage
	access  *AccessTokenRepository
	refresh *RefreshTokenRepository
	codes   *AuthCodeRepository
}

func NewTokenStore(storage *postgres.Storage) *TokenStore {
	pool := storage.Pool()
	return &TokenStore{
		storage: storage,
		access:  NewAccessTokenRepository(pool),
		refresh: NewRefreshTokenRepository(pool),
		codes:   NewAuthCodeRepository(pool),
	}
}

// IssueTokens persists the access-token record and, when present, the
// refresh-token record in one transaction.
func (s *TokenStore) IssueTokens(ctx context.Context, access *models.AccessToken, refresh *models.RefreshToken) error {
	return s.storage.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := s.access.WithTx(tx).SaveAccessToken(ctx, access); err != nil {
			return fmt.Errorf("save access token: %w", err)
		}
		if refresh != nil {
			if err := s.refresh.WithTx(tx).SaveRefreshToken(ctx, refresh); err != nil {
				return fmt.Errorf("save refresh token: %w", err)
			}
		}
		return nil
	})
}

// ExchangeAuthCode claims the code, runs the issue callback and persists
// the resulting records in a single transaction. Exactly one caller can
// claim; an error from the callback rolls the claim back, leaving the code
// redeemable. The claimed record is returned even on a reuse sentinel so
// the caller can inspect it.
func (s *TokenStore) ExchangeAuthCode(
	ctx context.Context,
	code string,
	issue func(code *models.AuthorizationCode) (*models.AccessToken, *models.RefreshToken, error),
) (*models.AuthorizationCode, error) {
	var claimed *models.AuthorizationCode
	err := s.storage.WithinTx(ctx, func(tx pgx.Tx) error {
		var err error
		claimed, err = s.codes.WithTx(tx).ClaimAuthCode(ctx, code)
		if err != nil {
			return err
		}
		access, refresh, err := issue(claimed)
		if err != nil {
			return err
		}
		if err := s.access.WithTx(tx).SaveAccessToken(ctx, access); err != nil {
			return fmt.Errorf("save access token: %w", err)
		}
		if refresh != nil {
			if err := s.refresh.WithTx(tx).SaveRefreshToken(ctx, refresh); err != nil {
				return fmt.Errorf("save refresh token: %w", err)
			}
		}
		return nil
	})
	return claimed, err
}

// RotateRefreshToken claims the presented token, runs the issue callback
// and persists the successor plus the new access-token record in a single
// transaction. An error from the callback rolls the rotation marker back so
// the owner's token survives a third party's failed request. Rotated and
// revoked tokens come back with their sentinel and the stored record.
func (s *TokenStore) RotateRefreshToken(
	ctx context.Context,
	tokenHash string,
	issue func(old *models.RefreshToken) (*models.RefreshToken, *models.AccessToken, error),
) (*models.RefreshToken, error) {
	var claimed *models.RefreshToken
	err := s.storage.WithinTx(ctx, func(tx pgx.Tx) error {
		var err error
		claimed, err = s.refresh.WithTx(tx).ClaimRefreshToken(ctx, tokenHash)
		if err != nil {
			return err
		}
		next, access, err := issue(claimed)
		if err != nil {
			return err
		}
		if err := s.refresh.WithTx(tx).SaveRefreshToken(ctx, next); err != nil {
			return fmt.Errorf("save rotated refresh token: %w", err)
		}
		if err := s.access.WithTx(tx).SaveAccessToken(ctx, access); err != nil {
			return fmt.Errorf("save access token: %w", err)
		}
		return nil
	})
	return claimed, err
}

func (s *TokenStore) AccessToken(ctx context.Context, jti string) (*models.AccessToken, error) {
	return s.access.AccessToken(ctx, jti)
}

func (s *TokenStore) RefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return s.refresh.RefreshTokenByHash(ctx, tokenHash)
}

func (s *TokenStore) RevokeAccessToken(ctx context.Context, jti string) error {
	return s.access.RevokeAccessToken(ctx, jti)
}

func (s *TokenStore) RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	return s.refresh.RevokeRefreshToken(ctx, tokenHash)
}

func (s *TokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	return s.refresh.RevokeFamily(ctx, familyID)
}

func (s *TokenStore) RevokeUserClientTokens(ctx context.Context, userID, clientID string) (int64, error) {
	return s.access.RevokeUserClientTokens(ctx, userID, clientID)
}

func (s *TokenStore) RevokeUserClientRefreshTokens(ctx context.Context, userID, clientID string) (int64, error) {
	return s.refresh.RevokeUserClientRefreshTokens(ctx, userID, clientID)
}
