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

// ClientRepository resolves registered OAuth applications. Client records
// are written by the client-management subsystem; this side only reads.
type ClientRepository struct {
	db postgres.DB
}

// NewClientRepository creates new instance of ClientRepository
func NewClientRepository(db postgres.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Client gets a models.Client from db by its id
func (r *ClientRepository) Client(ctx context.Context, clientID string) (*models.Client, error) {
	var client models.Client
	err := r.db.QueryRow(
		ctx,
		`SELECT id, name, secret_hash, redirect_uris, response_types, grant_types,
		        allowed_scopes, allowed_audiences, is_public, is_confidential,
		        is_verified, is_trusted
		 FROM clients WHERE id = $1`,
		clientID,
	).Scan(
		&client.ID,
		&client.Name,
		&client.SecretHash,
		&client.RedirectURIs,
		&client.ResponseTypes,
		&client.GrantTypes,
		&client.AllowedScopes,
		&client.AllowedAudiences,
		&client.IsPublic,
		&client.IsConfidential,
		&client.IsVerified,
		&client.IsTrusted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to query client: %w", err)
	}
	return &client, nil
}
