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

// ConsentRepository accumulates per-(user, client) granted scopes.
type ConsentRepository struct {
	db postgres.DB
}

// NewConsentRepository creates new instance of ConsentRepository
func NewConsentRepository(db postgres.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// Consent gets the models.Consent for a user and client pair.
func (r *ConsentRepository) Consent(ctx context.Context, userID, clientID string) (*models.Consent, error) {
	var consent models.Consent
	err := r.db.QueryRow(
		ctx,
		`SELECT user_id, client_id, granted_scopes, created_at, updated_at
		 FROM consents WHERE user_id = $1 AND client_id = $2`,
		userID,
		clientID,
	).Scan(
		&consent.UserID,
		&consent.ClientID,
		&consent.GrantedScopes,
		&consent.CreatedAt,
		&consent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to query consent: %w", err)
	}
	return &consent, nil
}

// SaveConsent writes the merged granted-scope set for the pair, creating the
// record on first grant.
func (r *ConsentRepository) SaveConsent(ctx context.Context, userID, clientID string, grantedScopes []string) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO consents (user_id, client_id, granted_scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (user_id, client_id)
		 DO UPDATE SET granted_scopes = EXCLUDED.granted_scopes, updated_at = now()`,
		userID,
		clientID,
		grantedScopes,
	)
	if err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}
	return nil
}

// RevokeConsent removes the pair's consent record entirely.
func (r *ConsentRepository) RevokeConsent(ctx context.Context, userID, clientID string) error {
	_, err := r.db.Exec(
		ctx,
		`DELETE FROM consents WHERE user_id = $1 AND client_id = $2`,
		userID,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	return nil
}
